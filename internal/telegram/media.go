package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Telegram принимает в альбом от 2 до 10 вложений; документы нельзя смешивать с фото и видео.
const maxGroupSize = 10

// SendMedia отправляет одно вложение с подписью.
func (c *Client) SendMedia(ctx context.Context, chatID int64, item models.MediaItem, caption string) error {
	const op = "telegram.SendMedia"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var msg tgbotapi.Chattable
	file := tgbotapi.FileID(item.FileID)
	switch item.Kind {
	case models.MediaPhoto:
		p := tgbotapi.NewPhoto(chatID, file)
		p.Caption = caption
		msg = p
	case models.MediaVideo:
		v := tgbotapi.NewVideo(chatID, file)
		v.Caption = caption
		msg = v
	case models.MediaDocument:
		d := tgbotapi.NewDocument(chatID, file)
		d.Caption = caption
		msg = d
	default:
		return fmt.Errorf("%s: unknown media kind %q", op, item.Kind)
	}

	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendMediaGroup отправляет несколько вложений альбомом. Подпись ставится только
// на первое вложение. Если вложения не помещаются в один альбом, они делятся на
// несколько сообщений в исходном порядке.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, items []models.MediaItem, caption string) error {
	const op = "telegram.SendMediaGroup"

	for i, chunk := range chunkMedia(items) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		chunkCaption := ""
		if i == 0 {
			chunkCaption = caption
		}

		if len(chunk) == 1 {
			if err := c.SendMedia(ctx, chatID, chunk[0], chunkCaption); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			continue
		}

		media := make([]interface{}, 0, len(chunk))
		for j, item := range chunk {
			itemCaption := ""
			if j == 0 {
				itemCaption = chunkCaption
			}
			media = append(media, inputMedia(item, itemCaption))
		}
		if _, err := c.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func inputMedia(item models.MediaItem, caption string) interface{} {
	file := tgbotapi.FileID(item.FileID)
	switch item.Kind {
	case models.MediaVideo:
		v := tgbotapi.NewInputMediaVideo(file)
		v.Caption = caption
		return v
	case models.MediaDocument:
		d := tgbotapi.NewInputMediaDocument(file)
		d.Caption = caption
		return d
	default:
		p := tgbotapi.NewInputMediaPhoto(file)
		p.Caption = caption
		return p
	}
}

// chunkMedia делит вложения на альбомы: подряд идущие документы отдельно
// от фото и видео, не больше maxGroupSize в альбоме.
func chunkMedia(items []models.MediaItem) [][]models.MediaItem {
	var chunks [][]models.MediaItem
	var current []models.MediaItem
	for _, item := range items {
		if len(current) > 0 {
			sameFamily := (current[0].Kind == models.MediaDocument) == (item.Kind == models.MediaDocument)
			if !sameFamily || len(current) == maxGroupSize {
				chunks = append(chunks, current)
				current = nil
			}
		}
		current = append(current, item)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
