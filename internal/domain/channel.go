package domain

import "context"

// Notifier delivers a text message to a chat on the messaging platform.
// It reports true only on confirmed delivery.
type Notifier interface {
	Notify(ctx context.Context, chatID string, text string) bool
}

// FileDownloader fetches a platform-hosted file (e.g. a voice note) by id.
type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}
