package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/envologia/envo/internal/transport"
)

// Sentinel strings substituted when reply media cannot be processed; the
// pipeline continues with degraded content rather than aborting.
const (
	voiceSentinel = "Voice: could not transcribe"
	imageSentinel = "Image: could not analyze"
)

// Resolution is the target content a command operates on.
type Resolution struct {
	Text string
	// FromReply is true when the content came from the replied-to message
	// rather than inline argument text.
	FromReply bool
}

// Resolve determines the text payload a command operates on, with fixed
// precedence: inline trailing text, then replied text, then a replied
// voice transcription, then a replied image description. Returns false
// when no content is resolvable; the caller must emit a usage hint and
// must not call the generation backend.
func (d *Dispatcher) Resolve(ctx context.Context, ev *transport.Event, args string) (Resolution, bool) {
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		return Resolution{Text: trimmed}, true
	}

	if ev.ReplyTo == nil {
		return Resolution{}, false
	}

	text, ok := d.resolveReplyContent(ctx, ev.ReplyTo)
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Text: text, FromReply: true}, true
}

// resolveReplyContent extracts usable text from a replied-to message:
// its body verbatim, a voice transcription, or an image description.
// Media failures degrade to sentinel strings, never errors.
func (d *Dispatcher) resolveReplyContent(ctx context.Context, reply *transport.Event) (string, bool) {
	if strings.TrimSpace(reply.Text) != "" {
		return reply.Text, true
	}

	switch reply.Kind {
	case transport.KindVoice:
		data, mimeType, err := d.downloadMedia(ctx, reply.MediaID)
		if err != nil {
			d.log.WarnContext(ctx, "Voice download failed", "error", err)
			return voiceSentinel, true
		}
		text, err := d.ai.Transcribe(ctx, mimeType, data)
		if err != nil || strings.TrimSpace(text) == "" {
			return voiceSentinel, true
		}
		return text, true

	case transport.KindPhoto:
		data, mimeType, err := d.downloadMedia(ctx, reply.MediaID)
		if err != nil {
			d.log.WarnContext(ctx, "Image download failed", "error", err)
			return imageSentinel, true
		}
		// DescribeImage is total and never returns empty text.
		return d.ai.DescribeImage(ctx, mimeType, data), true
	}

	return "", false
}

// downloadMedia fetches media into a temporary file, reads it, and removes
// the file before returning, regardless of success or failure.
func (d *Dispatcher) downloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if mediaID == "" {
		return nil, "", fmt.Errorf("message carries no media handle")
	}

	path, err := d.tg.Download(ctx, mediaID)
	if err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(path); removeErr != nil {
			d.log.WarnContext(ctx, "Failed to remove temporary media file", "path", path, "error", removeErr)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read downloaded media: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("downloaded media file is empty")
	}

	mimeType := http.DetectContentType(data)
	// Telegram voice notes are OGG/Opus; DetectContentType reports the
	// container type, the backend wants the audio type.
	if mimeType == "application/ogg" {
		mimeType = "audio/ogg"
	}

	return data, mimeType, nil
}
