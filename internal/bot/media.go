package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// mimeExtensions maps common attachment MIME types to file
// extensions for downloads that arrive without a filename.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"video/mp4":       ".mp4",
}

// ExtractFileID picks the attachment worth uploading from a message:
// the largest photo rendition, or the document. Returns the file id,
// a suggested filename, and whether anything was found.
func ExtractFileID(msg *Message) (fileID, filename string, ok bool) {
	if msg == nil {
		return "", "", false
	}

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > largest.FileSize {
				largest = p
			}
		}
		return largest.FileID, "", true
	}

	if msg.Document != nil {
		name := msg.Document.FileName
		if name == "" {
			name = uuid.New().String() + extensionFor(msg.Document.MimeType)
		}
		return msg.Document.FileID, name, true
	}

	return "", "", false
}

func extensionFor(mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}

// DownloadAttachment fetches a Telegram file into the downloads
// directory and returns the local path.
func (b *Bot) DownloadAttachment(ctx context.Context, fileID, filename string) (string, error) {
	file, err := b.telegram.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file: %w", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("telegram returned no file path for %s", fileID)
	}

	if filename == "" {
		filename = filepath.Base(file.FilePath)
	}
	if filename == "" || filename == "." {
		filename = uuid.New().String() + ".bin"
	}

	if err := os.MkdirAll(b.downloadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create downloads directory: %w", err)
	}

	// Prefix with a UUID so concurrent uploads never collide.
	destPath := filepath.Join(b.downloadsDir, uuid.New().String()[:8]+"_"+filename)
	if err := b.telegram.DownloadFile(ctx, file.FilePath, destPath); err != nil {
		return "", err
	}

	b.logger.Debug().Str("path", destPath).Msg("Attachment downloaded")
	return destPath, nil
}
