package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

const (
	btnNewSearch  = "🔍 Створити підписку"
	btnMySearches = "📋 Мої підписки"
	btnSkip       = "➡️ Пропустити"
	refPageSize   = 20
	refColumns    = 2
)

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnNewSearch)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMySearches)),
)

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
	)
	kb.OneTimeKeyboard = true
	return kb
}

// pagedKeyboard arranges reference items into a paginated inline grid.
// Callback data is "<prefix>:<id>" for items and "<prefix>_page:<n>"
// for the navigation arrows.
func pagedKeyboard(items []models.RefItem, prefix string, page int, extraRows ...[]tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	if page < 0 {
		page = 0
	}

	start := page * refPageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + refPageSize
	if end > len(items) {
		end = len(items)
	}
	chunk := items[start:end]

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, it := range chunk {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(it.Name, fmt.Sprintf("%s:%d", prefix, it.ID)))
		if len(row) == refColumns {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, extraRows...)

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", prefix+"_page:"+strconv.Itoa(page-1)))
	}
	if end < len(items) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", prefix+"_page:"+strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func brandsKeyboard(brands []models.RefItem, page int) tgbotapi.InlineKeyboardMarkup {
	return pagedKeyboard(brands, "brand", page)
}

// modelsKeyboard has two modes: the full list and a filtered search
// result. Both carry an "any model" escape hatch.
func modelsKeyboard(items []models.RefItem, page int, searchMode bool) tgbotapi.InlineKeyboardMarkup {
	var extra []tgbotapi.InlineKeyboardButton
	prefix := "model"
	if searchMode {
		prefix = "modelS"
		extra = append(extra,
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Всі моделі", "model_back"),
			tgbotapi.NewInlineKeyboardButtonData("🔎 Новий пошук", "model_search"),
		)
	} else {
		extra = append(extra, tgbotapi.NewInlineKeyboardButtonData("🔎 Пошук моделі", "model_search"))
	}
	extra = append(extra, tgbotapi.NewInlineKeyboardButtonData("➡️ Будь-яка модель", "model:0"))

	return pagedKeyboard(items, prefix, page, extra)
}

func regionsKeyboard(regions []models.RefItem, page int) tgbotapi.InlineKeyboardMarkup {
	skip := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("➡️ Вся Україна", "region:0"),
	}
	return pagedKeyboard(regions, "region", page, skip)
}

// Fuel and gearbox ids are fixed marketplace constants, not fetched.
var fuelItems = []models.RefItem{
	{ID: 1, Name: "Бензин"},
	{ID: 2, Name: "Дизель"},
	{ID: 3, Name: "Газ"},
	{ID: 4, Name: "Газ/Бензин"},
	{ID: 5, Name: "Гібрид"},
	{ID: 6, Name: "Електро"},
}

var gearboxItems = []models.RefItem{
	{ID: 1, Name: "Ручна"},
	{ID: 2, Name: "Автомат"},
	{ID: 4, Name: "Робот"},
	{ID: 5, Name: "Варіатор"},
}

func fuelKeyboard() tgbotapi.InlineKeyboardMarkup {
	skip := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("➡️ Пропустити (Будь-яке)", "fuel:0"),
	}
	return pagedKeyboard(fuelItems, "fuel", 0, skip)
}

func gearboxKeyboard() tgbotapi.InlineKeyboardMarkup {
	skip := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("➡️ Пропустити (Будь-яка)", "gear:0"),
	}
	return pagedKeyboard(gearboxItems, "gear", 0, skip)
}

func refName(items []models.RefItem, id int64, fallback string) string {
	for _, it := range items {
		if it.ID == id {
			return it.Name
		}
	}
	return fallback
}
