package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/api/downloads"
	"github.com/hbomb79/mediaload/internal/http/websocket"
)

const (
	TitleDownloadUpdate   = "DOWNLOAD_UPDATE"
	TitleDownloadProgress = "DOWNLOAD_PROGRESS"
	TitleLibraryUpdate    = "LIBRARY_UPDATE"

	commandDownloadStatus = "DOWNLOAD_STATUS"
)

type (
	DownloadUpdate struct {
		DownloadID uuid.UUID      `json:"download_id"`
		Download   *downloads.Dto `json:"download"`
	}

	DownloadProgressUpdate struct {
		DownloadID     uuid.UUID `json:"download_id"`
		Progress       float64   `json:"progress"`
		Speed          string    `json:"speed"`
		ETA            string    `json:"eta"`
		PostProcessing bool      `json:"post_processing"`
	}

	broadcaster struct {
		socketHub       *websocket.SocketHub
		downloadService downloads.Service
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, downloadService downloads.Service) *broadcaster {
	b := &broadcaster{socketHub, downloadService}
	socketHub.WithConnectionCallback(b.connectionPayload)
	socketHub.BindCommand(commandDownloadStatus, b.handleStatusCommand)

	return b
}

// BroadcastDownloadUpdate sends the full state of the download to every client.
func (hub *broadcaster) BroadcastDownloadUpdate(id uuid.UUID) error {
	job, ok := hub.downloadService.Job(id)
	if !ok {
		return fmt.Errorf("download %s not found", id)
	}

	hub.broadcast(TitleDownloadUpdate, DownloadUpdate{DownloadID: id, Download: downloads.NewDto(job)})
	return nil
}

// BroadcastDownloadProgress sends only the progress fields of the download to every client.
func (hub *broadcaster) BroadcastDownloadProgress(id uuid.UUID) error {
	job, ok := hub.downloadService.Job(id)
	if !ok {
		return fmt.Errorf("download %s not found", id)
	}

	hub.broadcast(TitleDownloadProgress, DownloadProgressUpdate{
		DownloadID:     id,
		Progress:       job.Progress,
		Speed:          job.Speed,
		ETA:            job.ETA,
		PostProcessing: job.PostProcessing,
	})
	return nil
}

// BroadcastLibraryUpdate notifies clients that the set of downloaded files has
// changed; clients are expected to re-fetch the file listing.
func (hub *broadcaster) BroadcastLibraryUpdate(uuid.UUID) error {
	hub.broadcast(TitleLibraryUpdate, nil)
	return nil
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]interface{}{"arguments": update},
		Type:  websocket.Update,
	})
}

// connectionPayload furnishes newly connected clients with every known download.
func (hub *broadcaster) connectionPayload() map[string]interface{} {
	jobs := hub.downloadService.Jobs()
	dtos := make([]*downloads.Dto, 0, len(jobs))
	for _, job := range jobs {
		dtos = append(dtos, downloads.NewDto(job))
	}

	return map[string]interface{}{"downloads": dtos}
}

// handleStatusCommand replies to the requesting client with the state of a single
// download, allowing a socket client to resync without an HTTP round-trip.
func (hub *broadcaster) handleStatusCommand(socket *websocket.SocketHub, command *websocket.SocketMessage) error {
	if err := command.ValidateArguments(map[string]string{"id": "string"}); err != nil {
		return err
	}

	id, err := uuid.Parse(command.Body["id"].(string))
	if err != nil {
		return fmt.Errorf("download ID is not a valid UUID: %w", err)
	}

	job, ok := hub.downloadService.Job(id)
	if !ok {
		return fmt.Errorf("download %s not found", id)
	}

	socket.Send(command.FormReply(TitleDownloadUpdate, map[string]interface{}{"download": downloads.NewDto(job)}, websocket.Response))
	return nil
}
