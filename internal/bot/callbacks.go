package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fotosito/internal/ledger"
	"fotosito/internal/locations"
	"fotosito/internal/models"
	"fotosito/internal/remote"
)

// handleLocationCallback processes the location button press and, on a
// valid selection, commits the pending submission: local save, ledger
// append, best-effort mirror append and best-effort remote upload.
func (b *Bot) handleLocationCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	code := query.Data

	if !locations.IsValid(code) {
		// Stay in the selection state; the keyboard is still showing
		b.editMessage(query, "❗ Opción no válida. Intenta de nuevo.")
		return
	}

	session := b.session(userID)
	if session == nil || session.Pending == nil {
		// Stale callback: the session was cancelled, evicted or never
		// existed. Nothing to commit.
		b.editMessage(query, "⚠️ No encuentro la foto. Envíame una foto otra vez.")
		b.clearSession(userID)
		return
	}

	sub := session.Pending
	b.commitSubmission(ctx, query, sub, code)
	b.clearSession(userID)
}

// commitSubmission performs the final transition's side effects and
// reports the outcome to the user as a single status message.
func (b *Bot) commitSubmission(ctx context.Context, query *tgbotapi.CallbackQuery, sub *models.Submission, code string) {
	data, err := b.download(ctx, sub.FileID)
	if err != nil {
		b.logger.Error("Failed to download photo",
			zap.Error(err),
			zap.String("submission_id", sub.ID.String()),
		)
		b.editMessage(query, "❌ No pude descargar la foto. Envíala otra vez.")
		return
	}

	path, err := b.store.Save(code, sub.Filename, data)
	if err != nil {
		// A photo that never reached disk must not get a ledger row
		b.logger.Error("Failed to save photo",
			zap.Error(err),
			zap.String("submission_id", sub.ID.String()),
			zap.String("code", code),
		)
		b.editMessage(query, "❌ No pude guardar la foto. Intenta de nuevo.")
		return
	}

	rec := models.Record{
		Filename: sub.Filename,
		Group:    locations.GroupFor(code),
		Code:     code,
		Taken:    sub.TakenAt,
	}
	if err := b.ledger.Append(ctx, rec); err != nil {
		b.logger.Error("Failed to append ledger row",
			zap.Error(err),
			zap.String("submission_id", sub.ID.String()),
			zap.String("filename", rec.Filename),
		)
		b.editMessage(query, "❌ La foto se guardó pero no pude registrarla. Avisa al administrador.")
		return
	}

	if b.mirror != nil {
		if err := b.mirror.Append(ctx, rec); err != nil {
			// The CSV row exists; the mirror is best-effort
			b.logger.Warn("Failed to mirror ledger row",
				zap.Error(err),
				zap.String("filename", rec.Filename),
			)
		}
	}

	warning := ""
	if b.uploader != nil {
		if err := b.uploader.Upload(ctx, path, code, sub.Filename); err != nil {
			var uploadErr *remote.UploadError
			if errors.As(err, &uploadErr) {
				b.logger.Warn("Remote upload rejected",
					zap.Int("status", uploadErr.Status),
					zap.String("filename", sub.Filename),
				)
			} else {
				b.logger.Warn("Remote upload failed",
					zap.Error(err),
					zap.String("filename", sub.Filename),
				)
			}
			warning = "\n⚠️ No se pudo subir la copia remota (la foto quedó guardada localmente)."
		}
	}

	b.logger.Info("Submission committed",
		zap.String("submission_id", sub.ID.String()),
		zap.String("code", code),
		zap.String("path", path),
	)

	b.editMessage(query, fmt.Sprintf(
		"✅ Guardado correctamente.\n📁 Carpeta: %s\n🗂️ Archivo: %s\n🕒 %s%s",
		b.store.Dir(code),
		sub.Filename,
		sub.TakenAt.Format(ledger.TimeLayout),
		warning,
	))
}
