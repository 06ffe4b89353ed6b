// Package telegram wraps the bot API: outbound listing notifications
// here, the interactive subscription flow in package bot.
package telegram

import (
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

// SendCar delivers one listing to a user, as a photo with caption when
// an image is available and as a plain message otherwise. Errors are
// recoverable: the caller logs and moves on to the next listing.
func (n *Notifier) SendCar(userID int64, car models.Car) error {
	caption := BuildCaption(car)

	if car.ImageURL != "" {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(car.ImageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := n.api.Send(photo); err == nil {
			return nil
		}
		// The image URL may be stale or rejected by Telegram; fall
		// back to a text message so the listing still goes out.
	}

	msg := tgbotapi.NewMessage(userID, caption)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.api.Send(msg)
	return err
}

// BuildCaption renders the notification body. Every field is always
// present: enrichment replaces unknown values with a placeholder dash.
func BuildCaption(car models.Car) string {
	return fmt.Sprintf(
		"🚗 <b>%s</b>\n"+
			"💰 <b>%d $</b>\n\n"+
			"📏 %d тис. км\n"+
			"📍 %s\n"+
			"⚙️ %s | ⛽ %s\n\n"+
			"🔗 <a href='%s'>Відкрити оголошення</a>",
		html.EscapeString(car.Title),
		car.PriceUSD,
		car.Mileage,
		html.EscapeString(car.Location),
		html.EscapeString(car.Gearbox),
		html.EscapeString(car.Fuel),
		car.URL,
	)
}
