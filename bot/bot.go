// Package bot implements the interactive Telegram front-end: a
// step-by-step form that collects filter criteria and saves them as a
// subscription for the poller.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// Repo is the persistence surface the conversation flow needs.
type Repo interface {
	AddUser(ctx context.Context, u models.User) error
	AddSearch(ctx context.Context, s models.Search) error
	GetUserSearches(ctx context.Context, userID int64) ([]models.Search, error)
	DeleteSearch(ctx context.Context, searchID, userID int64) error
}

// Catalog provides the marketplace taxonomies the keyboards are built
// from. Empty results mean the upstream is unreachable right now.
type Catalog interface {
	GetBrands(ctx context.Context) []models.RefItem
	GetModels(ctx context.Context, brandID int64) []models.RefItem
	GetStates(ctx context.Context) []models.RefItem
}

type Bot struct {
	api      *tgbotapi.BotAPI
	repo     Repo
	catalog  Catalog
	sessions *sessionStore
}

func New(api *tgbotapi.BotAPI, repo Repo, catalog Catalog) *Bot {
	return &Bot{
		api:      api,
		repo:     repo,
		catalog:  catalog,
		sessions: newSessionStore(),
	}
}

// Run consumes the update stream until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Bot @%s accepting updates", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// =============================================================================
// Messages
// =============================================================================

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		b.cmdStart(ctx, msg)
		return
	case text == btnNewSearch:
		b.startForm(ctx, userID, msg.Chat.ID)
		return
	case text == btnMySearches:
		b.showSearches(ctx, userID, msg.Chat.ID)
		return
	case strings.HasPrefix(text, "/del_"):
		b.deleteSearch(ctx, userID, msg.Chat.ID, text)
		return
	}

	sess := b.sessions.get(userID)
	if sess == nil {
		return
	}

	switch sess.step {
	case stepModelSearch:
		b.handleModelSearchText(userID, msg.Chat.ID, text, sess)
	case stepYearFrom:
		n, ok := parseNumberOrSkip(text)
		if !ok {
			b.send(msg.Chat.ID, "❌ Введи число або натисни '➡️ Пропустити'.")
			return
		}
		sess.draft.YearFrom = n
		sess.step = stepYearTo
		b.sendWithKeyboard(msg.Chat.ID, "📅 Рік ДО (або 'Пропустити'):", skipKeyboard())
	case stepYearTo:
		n, ok := parseNumberOrSkip(text)
		if !ok {
			b.send(msg.Chat.ID, "❌ Введи число або натисни '➡️ Пропустити'.")
			return
		}
		sess.draft.YearTo = n
		sess.step = stepPriceFrom
		b.sendWithKeyboard(msg.Chat.ID, "💰 Ціна ВІД $ (або 'Пропустити'):", skipKeyboard())
	case stepPriceFrom:
		n, ok := parseNumberOrSkip(text)
		if !ok {
			b.send(msg.Chat.ID, "❌ Введи число або натисни '➡️ Пропустити'.")
			return
		}
		sess.draft.PriceFrom = n
		sess.step = stepPriceTo
		b.sendWithKeyboard(msg.Chat.ID, "💰 Ціна ДО $ (або 'Пропустити'):", skipKeyboard())
	case stepPriceTo:
		n, ok := parseNumberOrSkip(text)
		if !ok {
			b.send(msg.Chat.ID, "❌ Введи число або натисни '➡️ Пропустити'.")
			return
		}
		sess.draft.PriceTo = n
		b.askRegion(ctx, msg.Chat.ID, sess)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	user := models.User{
		UserID:   msg.From.ID,
		Username: msg.From.UserName,
		FullName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
	}
	if err := b.repo.AddUser(ctx, user); err != nil {
		log.Printf("Failed to register user %d: %v", user.UserID, err)
	}
	b.sendWithKeyboard(msg.Chat.ID, "👋 Привіт! Тисни кнопку для пошуку 👇", mainMenu)
}

func (b *Bot) startForm(ctx context.Context, userID, chatID int64) {
	brands := b.catalog.GetBrands(ctx)
	if len(brands) == 0 {
		b.send(chatID, "⚠️ Не вдалося завантажити список марок. Спробуй пізніше.")
		return
	}

	sess := &session{step: stepBrand, brands: brands}
	sess.draft.UserID = userID
	b.sessions.put(userID, sess)

	b.sendWithKeyboard(chatID, "🚗 Обери марку:", brandsKeyboard(brands, 0))
}

func (b *Bot) showSearches(ctx context.Context, userID, chatID int64) {
	searches, err := b.repo.GetUserSearches(ctx, userID)
	if err != nil {
		log.Printf("Failed to list searches for user %d: %v", userID, err)
		b.send(chatID, "❌ Помилка БД. Спробуй пізніше.")
		return
	}
	if len(searches) == 0 {
		b.send(chatID, "📭 Пусто.")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>📋 Твої пошуки:</b>\n\n")
	for _, s := range searches {
		modelPart := ""
		if s.ModelName != "" {
			modelPart = " " + s.ModelName
		}
		yearPart := ""
		if s.YearFrom > 0 {
			yearPart = fmt.Sprintf(" (%d+)", s.YearFrom)
		}
		fmt.Fprintf(&sb, "🔹 <b>%s%s</b>%s\n❌ /del_%d\n\n", s.Brand, modelPart, yearPart, s.ID)
	}
	b.sendHTML(chatID, sb.String())
}

func (b *Bot) deleteSearch(ctx context.Context, userID, chatID int64, text string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(text, "/del_"), 10, 64)
	if err != nil {
		return
	}
	if err := b.repo.DeleteSearch(ctx, id, userID); err != nil {
		log.Printf("Failed to delete search %d for user %d: %v", id, userID, err)
		return
	}
	b.send(chatID, "✅ Видалено.")
}

func (b *Bot) handleModelSearchText(userID, chatID int64, query string, sess *session) {
	if len([]rune(query)) < 2 {
		b.send(chatID, "❌ Введи хоча б 2 символи для пошуку.")
		return
	}

	q := strings.ToLower(query)
	var filtered []models.RefItem
	for _, m := range sess.modelsAll {
		if strings.Contains(strings.ToLower(m.Name), q) {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		b.send(chatID, "😕 Нічого не знайшов. Спробуй інший запит або коротше/довше слово.")
		return
	}

	sess.modelsSearch = filtered
	sess.searchMode = true
	sess.step = stepModel

	b.sendHTMLWithKeyboard(chatID,
		fmt.Sprintf("🔎 Результати для: <b>%s</b> (знайдено %d)", query, len(filtered)),
		modelsKeyboard(filtered, 0, true))
}

// =============================================================================
// Callbacks
// =============================================================================

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer b.ack(cb)

	// Callbacks from inline-mode results or messages older than 48h
	// arrive without a source message; there is nothing to edit or
	// reply to, so just answer the query.
	if cb.Message == nil {
		return
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	sess := b.sessions.get(userID)
	if sess == nil {
		return
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, "brand_page:") && sess.step == stepBrand:
		b.editKeyboard(cb, brandsKeyboard(sess.brands, parsePage(data)))

	case strings.HasPrefix(data, "brand:") && sess.step == stepBrand:
		b.selectBrand(ctx, cb, sess, parseID(data))

	case strings.HasPrefix(data, "model_page:") && sess.step == stepModel:
		b.editKeyboard(cb, modelsKeyboard(sess.modelsAll, parsePage(data), false))

	case strings.HasPrefix(data, "modelS_page:") && sess.step == stepModel:
		b.editKeyboard(cb, modelsKeyboard(sess.modelsSearch, parsePage(data), true))

	case data == "model_search" && sess.step == stepModel:
		sess.step = stepModelSearch
		b.send(chatID, "🔎 Введи назву моделі (наприклад: Camry, Octavia, X5):")

	case data == "model_back" && sess.step == stepModel:
		sess.searchMode = false
		b.editKeyboard(cb, modelsKeyboard(sess.modelsAll, 0, false))

	case (strings.HasPrefix(data, "model:") || strings.HasPrefix(data, "modelS:")) && sess.step == stepModel:
		b.selectModel(cb, sess, parseID(data))

	case strings.HasPrefix(data, "region_page:") && sess.step == stepRegion:
		b.editKeyboard(cb, regionsKeyboard(sess.regions, parsePage(data)))

	case strings.HasPrefix(data, "region:") && sess.step == stepRegion:
		b.selectRegion(cb, sess, parseID(data))

	case strings.HasPrefix(data, "fuel:") && sess.step == stepFuel:
		b.selectFuel(cb, sess, parseID(data))

	case strings.HasPrefix(data, "gear:") && sess.step == stepGearbox:
		b.saveSearch(ctx, cb, sess, parseID(data))
	}
}

func (b *Bot) selectBrand(ctx context.Context, cb *tgbotapi.CallbackQuery, sess *session, brandID int64) {
	chatID := cb.Message.Chat.ID
	brandName := refName(sess.brands, brandID, strconv.FormatInt(brandID, 10))
	sess.draft.BrandID = brandID
	sess.draft.Brand = brandName

	b.editText(cb, fmt.Sprintf("⏳ Завантажую моделі %s...", brandName))

	carModels := b.catalog.GetModels(ctx, brandID)
	if len(carModels) == 0 {
		// Rare brand with no model list; proceed straight to years.
		sess.draft.ModelID = 0
		sess.draft.ModelName = "Будь-яка"
		sess.step = stepYearFrom
		b.sendWithKeyboard(chatID, "📅 Рік ВІД (наприклад 2010):", skipKeyboard())
		return
	}

	sess.modelsAll = carModels
	sess.searchMode = false
	sess.step = stepModel
	b.sendHTMLWithKeyboard(chatID,
		fmt.Sprintf("🚗 Обери модель <b>%s</b>:", brandName),
		modelsKeyboard(carModels, 0, false))
}

func (b *Bot) selectModel(cb *tgbotapi.CallbackQuery, sess *session, modelID int64) {
	modelName := "Будь-яка"
	if modelID != 0 {
		items := sess.modelsAll
		if sess.searchMode {
			items = sess.modelsSearch
		}
		modelName = refName(items, modelID, strconv.FormatInt(modelID, 10))
	}

	sess.draft.ModelID = modelID
	sess.draft.ModelName = modelName
	sess.step = stepYearFrom

	b.editText(cb, fmt.Sprintf("✅ Модель: %s", modelName))
	b.sendWithKeyboard(cb.Message.Chat.ID, "📅 Рік ВІД (наприклад 2010):", skipKeyboard())
}

func (b *Bot) askRegion(ctx context.Context, chatID int64, sess *session) {
	b.send(chatID, "⏳ Завантажую список областей...")

	regions := b.catalog.GetStates(ctx)
	if len(regions) == 0 {
		// Taxonomy endpoint down; default to the whole country.
		b.send(chatID, "⚠️ Не вдалося отримати список областей. Буде 'Вся Україна'.")
		sess.draft.RegionID = 0
		sess.regionName = "Вся Україна"
		sess.step = stepFuel
		b.sendWithKeyboard(chatID, "⛽ Тип палива:", fuelKeyboard())
		return
	}

	sess.regions = regions
	sess.step = stepRegion
	b.sendWithKeyboard(chatID, "📍 Обери область:", regionsKeyboard(regions, 0))
}

func (b *Bot) selectRegion(cb *tgbotapi.CallbackQuery, sess *session, regionID int64) {
	name := "Вся Україна"
	if regionID != 0 {
		name = refName(sess.regions, regionID, strconv.FormatInt(regionID, 10))
	}
	sess.draft.RegionID = regionID
	sess.regionName = name
	sess.step = stepFuel

	b.editText(cb, fmt.Sprintf("✅ Область: %s", name))
	b.sendWithKeyboard(cb.Message.Chat.ID, "⛽ Тип палива:", fuelKeyboard())
}

func (b *Bot) selectFuel(cb *tgbotapi.CallbackQuery, sess *session, fuelID int64) {
	name := "Будь-яке"
	if fuelID != 0 {
		name = refName(fuelItems, fuelID, strconv.FormatInt(fuelID, 10))
	}
	sess.draft.FuelID = fuelID
	sess.fuelName = name
	sess.step = stepGearbox

	b.editText(cb, fmt.Sprintf("✅ Паливо: %s", name))
	b.sendWithKeyboard(cb.Message.Chat.ID, "⚙️ Коробка передач:", gearboxKeyboard())
}

func (b *Bot) saveSearch(ctx context.Context, cb *tgbotapi.CallbackQuery, sess *session, gearboxID int64) {
	chatID := cb.Message.Chat.ID
	gearName := "Будь-яка"
	if gearboxID != 0 {
		gearName = refName(gearboxItems, gearboxID, strconv.FormatInt(gearboxID, 10))
	}
	sess.draft.GearboxID = gearboxID

	b.editText(cb, fmt.Sprintf("✅ Коробка: %s", gearName))

	if err := b.repo.AddSearch(ctx, sess.draft); err != nil {
		log.Printf("Failed to save search for user %d: %v", sess.draft.UserID, err)
		b.send(chatID, "❌ Помилка БД. Спробуй ще раз.")
		b.sessions.clear(sess.draft.UserID)
		return
	}

	modelPart := ""
	if sess.draft.ModelID != 0 {
		modelPart = " " + sess.draft.ModelName
	}
	yearTo := ""
	if sess.draft.YearTo > 0 {
		yearTo = strconv.Itoa(sess.draft.YearTo)
	}
	priceTo := "..."
	if sess.draft.PriceTo > 0 {
		priceTo = strconv.Itoa(sess.draft.PriceTo)
	}

	summary := fmt.Sprintf(
		"🚘 <b>%s%s</b>\n📅 %d-%s\n💰 %d$-%s\n📍 %s | ⛽ %s | ⚙️ %s",
		sess.draft.Brand, modelPart,
		sess.draft.YearFrom, yearTo,
		sess.draft.PriceFrom, priceTo,
		sess.regionName, sess.fuelName, gearName,
	)

	b.sendHTMLWithKeyboard(chatID, "🎉 <b>Підписку збережено!</b>\n\n"+summary, mainMenu)
	b.sessions.clear(sess.draft.UserID)
}

// =============================================================================
// Helpers
// =============================================================================

// parseNumberOrSkip maps the skip button to the 0 "any" sentinel and
// accepts non-negative integers.
func parseNumberOrSkip(text string) (int, bool) {
	if text == btnSkip || text == "Пропустити" {
		return 0, true
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 0 {
		return n, true
	}
	return 0, false
}

func parsePage(data string) int {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	n, _ := strconv.Atoi(parts[1])
	return n
}

func parseID(data string) int64 {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	n, _ := strconv.ParseInt(parts[1], 10, 64)
	return n
}

func (b *Bot) send(chatID int64, text string) {
	b.deliver(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.deliver(msg)
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, kb interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	b.deliver(msg)
}

func (b *Bot) sendHTMLWithKeyboard(chatID int64, text string, kb interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = kb
	b.deliver(msg)
}

func (b *Bot) deliver(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to chat %d: %v", msg.ChatID, err)
	}
}

func (b *Bot) editText(cb *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (b *Bot) editKeyboard(cb *tgbotapi.CallbackQuery, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID, kb)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit keyboard: %v", err)
	}
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("Failed to ack callback: %v", err)
	}
}
