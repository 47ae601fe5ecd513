package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/plandrop/plandrop/internal/domain"
	"github.com/plandrop/plandrop/internal/service"
)

// Bot routes inbound chat updates: user-facing menus and downloads, the
// privileged operator surface, and consumption of payloads by armed flows.
type Bot struct {
	transport  domain.Transport
	store      domain.ContentStore
	sessions   *service.SessionRegistry
	flows      *service.FlowService
	broadcast  *service.Broadcaster
	recipients domain.RecipientDirectory
	categories []domain.Category

	adminContact string
	donateText   string
}

// BotDeps holds the collaborators wired into the update router.
type BotDeps struct {
	Transport    domain.Transport
	Store        domain.ContentStore
	Sessions     *service.SessionRegistry
	Flows        *service.FlowService
	Broadcaster  *service.Broadcaster
	Recipients   domain.RecipientDirectory
	Categories   []domain.Category
	AdminContact string
	DonateText   string
}

// NewBot creates the update router.
func NewBot(deps BotDeps) *Bot {
	return &Bot{
		transport:    deps.Transport,
		store:        deps.Store,
		sessions:     deps.Sessions,
		flows:        deps.Flows,
		broadcast:    deps.Broadcaster,
		recipients:   deps.Recipients,
		categories:   deps.Categories,
		adminContact: deps.AdminContact,
		donateText:   deps.DonateText,
	}
}

// HandleUpdate dispatches one inbound transport event.
func (b *Bot) HandleUpdate(ctx context.Context, u domain.Update) {
	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.Callback != nil:
		b.handleCallback(ctx, u.Callback)
	}
}

// ---------------------------------------------------------------------------
// Messages

func (b *Bot) handleMessage(ctx context.Context, m *domain.Message) {
	if strings.HasPrefix(m.Text, "/") {
		b.handleCommand(ctx, m)
		return
	}

	// Non-command payloads are offered to the operator's armed flow first.
	outcome, err := b.flows.HandlePayload(ctx, m.From.ID, eventFromMessage(m))
	if err != nil {
		log.Printf("[Bot] flow payload from %d failed: %v", m.From.ID, err)
	}
	if outcome.Consumed && outcome.Reply != "" {
		b.reply(ctx, m.ChatID, outcome.Reply)
	}
	// Anything else is ignored; users interact through menus.
}

func eventFromMessage(m *domain.Message) domain.Event {
	switch {
	case m.Document != nil:
		return domain.Event{
			Kind:     domain.EventDocument,
			Ref:      m.Document.Ref,
			Filename: m.Document.Filename,
			Caption:  m.Caption,
		}
	case m.PhotoRef != "":
		return domain.Event{Kind: domain.EventPhoto, Ref: m.PhotoRef, Caption: m.Caption}
	}
	return domain.Event{Kind: domain.EventText, Text: m.Text}
}

func (b *Bot) handleCommand(ctx context.Context, m *domain.Message) {
	fields := strings.Fields(m.Text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/start":
		if err := b.recipients.Register(ctx, m.From.ID, m.From.Username); err != nil {
			log.Printf("[Bot] register %d failed: %v", m.From.ID, err)
		}
		b.sendMenu(ctx, m.ChatID, "Welcome! Pick a service:", b.mainMenu())

	case "/me":
		b.reply(ctx, m.ChatID, b.profileText(ctx, m.From.ID))

	case "/adminlogin":
		if len(args) != 1 {
			b.reply(ctx, m.ChatID, "Usage: /adminlogin <PIN>")
			return
		}
		if b.sessions.Login(m.From.ID, args[0]) {
			b.reply(ctx, m.ChatID, "Admin login successful. Use Admin Panel button or /adminpanel")
			return
		}
		b.reply(ctx, m.ChatID, "Invalid PIN.")

	case "/adminpanel":
		if !b.sessions.IsAuthorized(m.From.ID) {
			b.reply(ctx, m.ChatID, "Admin session required. Use /adminlogin <PIN>")
			return
		}
		b.sendMenu(ctx, m.ChatID, "Admin Panel", b.adminPanelMenu())

	case "/broadcast":
		if !b.sessions.IsAuthorized(m.From.ID) {
			b.reply(ctx, m.ChatID, "Admin only.")
			return
		}
		if len(args) == 0 {
			b.reply(ctx, m.ChatID, "Usage: /broadcast your message here")
			return
		}
		text := strings.Join(args, " ")
		tally, err := b.broadcast.Broadcast(ctx, domain.BroadcastPayload{Text: text})
		if err != nil {
			log.Printf("[Bot] broadcast failed: %v", err)
			b.reply(ctx, m.ChatID, "Broadcast failed.")
			return
		}
		b.reply(ctx, m.ChatID, fmt.Sprintf("Done. Sent %d, Failed %d", tally.Sent, tally.Failed))

	case "/broadcast_cancel":
		if b.flows.Cancel(m.From.ID) {
			b.reply(ctx, m.ChatID, "Flow cancelled.")
			return
		}
		b.reply(ctx, m.ChatID, "No active flow.")

	case "/listfiles":
		b.reply(ctx, m.ChatID, "Files:\n"+b.filesSummary())
	}
	// Unknown commands are ignored.
}

// ---------------------------------------------------------------------------
// Callbacks

func (b *Bot) handleCallback(ctx context.Context, q *domain.Callback) {
	if err := b.transport.AnswerCallback(ctx, q.ID); err != nil {
		log.Printf("[Bot] answer callback failed: %v", err)
	}

	data := q.Data
	switch {
	case strings.HasPrefix(data, "menu_"):
		provider := strings.TrimPrefix(data, "menu_")
		b.editMenu(ctx, q, strings.ToUpper(provider)+" — pick a plan:", b.providerMenu(provider))

	case data == "back_main":
		b.editMenu(ctx, q, "Main menu:", b.mainMenu())

	case data == "contact_admin":
		b.editMenu(ctx, q, "Contact Admin\n\n"+b.adminContact, b.mainMenu())

	case data == "donate_menu":
		b.editMenu(ctx, q, b.donateText, b.mainMenu())

	case data == "my_profile":
		b.editMenu(ctx, q, b.profileText(ctx, q.From.ID), b.mainMenu())

	case data == "admin_panel":
		if !b.requireAdmin(ctx, q) {
			return
		}
		b.editMenu(ctx, q, "Admin Panel", b.adminPanelMenu())

	case data == "admin_logout":
		b.sessions.EndSession(q.From.ID)
		b.editMenu(ctx, q, "Admin session ended.", b.mainMenu())

	case data == "admin_upload":
		if !b.requireAdmin(ctx, q) {
			return
		}
		b.editMenu(ctx, q, "Select category to upload to:", b.categoryPicker())

	case strings.HasPrefix(data, "upload:"):
		b.startUpload(ctx, q, strings.TrimPrefix(data, "upload:"))

	case data == "admin_listfiles":
		if !b.requireAdmin(ctx, q) {
			return
		}
		b.editMenu(ctx, q, "Files summary:\n\n"+b.filesSummary(), b.mainMenu())

	case data == "admin_stats":
		if !b.requireAdmin(ctx, q) {
			return
		}
		count, err := b.recipients.Count(ctx)
		if err != nil {
			log.Printf("[Bot] recipient count failed: %v", err)
		}
		text := fmt.Sprintf("Admin Stats\n\nRegistered users: %d\nCategories: %d", count, len(b.categories))
		b.editMenu(ctx, q, text, b.mainMenu())

	case data == "admin_broadcast_text":
		if !b.requireAdmin(ctx, q) {
			return
		}
		if err := b.flows.BeginBroadcastText(q.From.ID); err != nil {
			b.editMenu(ctx, q, "Access denied.", b.mainMenu())
			return
		}
		b.editMenu(ctx, q, "Send the text message you want to broadcast to all users (or use /broadcast <text>).", nil)

	case data == "admin_broadcast_media":
		if !b.requireAdmin(ctx, q) {
			return
		}
		if err := b.flows.BeginBroadcastMedia(q.From.ID); err != nil {
			b.editMenu(ctx, q, "Access denied.", b.mainMenu())
			return
		}
		b.editMenu(ctx, q, "Send the photo or document to broadcast to all users (you can add a caption).", nil)

	case strings.HasPrefix(data, "cat:"):
		b.showCategory(ctx, q, strings.TrimPrefix(data, "cat:"))

	case strings.HasPrefix(data, "getfile:"):
		b.sendRequestedFile(ctx, q, data)

	default:
		b.editMenu(ctx, q, "Unknown action.", b.mainMenu())
	}
}

// requireAdmin gates privileged callbacks; on failure the operation is
// aborted with an access-denied screen.
func (b *Bot) requireAdmin(ctx context.Context, q *domain.Callback) bool {
	if b.sessions.IsAuthorized(q.From.ID) {
		return true
	}
	b.editMenu(ctx, q, "Admin access required. Use /adminlogin <PIN> to start an admin session.", b.mainMenu())
	return false
}

func (b *Bot) startUpload(ctx context.Context, q *domain.Callback, key string) {
	cat, ok := domain.FindCategory(b.categories, key)
	if !ok {
		b.editMenu(ctx, q, "Unknown category.", b.mainMenu())
		return
	}
	if err := b.flows.BeginUpload(q.From.ID, key); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			b.editMenu(ctx, q, "Admin session required. /adminlogin <PIN>", b.mainMenu())
			return
		}
		log.Printf("[Bot] begin upload failed: %v", err)
		return
	}
	text := fmt.Sprintf("Send the file (document) to upload to %s.\n\nOptional: set caption expiry:7 to expire in 7 days.", cat.Label)
	b.editMenu(ctx, q, text, nil)
}

// showCategory lists a category for an end user: a single file is sent
// directly, several files become a pick list of the 10 newest.
func (b *Bot) showCategory(ctx context.Context, q *domain.Callback, key string) {
	cat, ok := domain.FindCategory(b.categories, key)
	if !ok {
		b.editMenu(ctx, q, "Unknown category.", b.mainMenu())
		return
	}

	files, err := b.store.List(key)
	if err != nil {
		log.Printf("[Bot] list %s failed: %v", key, err)
		b.editMenu(ctx, q, "Category is unavailable right now.", b.mainMenu())
		return
	}
	if len(files) == 0 {
		b.editMenu(ctx, q, fmt.Sprintf("No files for %s yet.\nContact admin to upload.", cat.Label), b.mainMenu())
		return
	}
	if len(files) == 1 {
		b.deliverFile(ctx, q, cat, files[0].Name)
		return
	}

	var kb domain.Keyboard
	for _, f := range files[:min(len(files), 10)] {
		token := domain.EncodeFileToken(f.Name)
		kb = append(kb, domain.Row(buttonLabel(f.Name), fmt.Sprintf("getfile:%s:%s", key, token)))
	}
	kb = append(kb, domain.Row("Back", "back_main"))
	b.editMenu(ctx, q, fmt.Sprintf("Select a file from %s:", cat.Label), kb)
}

func (b *Bot) sendRequestedFile(ctx context.Context, q *domain.Callback, data string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 3 {
		b.editMenu(ctx, q, "Invalid file request.", b.mainMenu())
		return
	}
	key, token := parts[1], parts[2]
	cat, ok := domain.FindCategory(b.categories, key)
	if !ok {
		b.editMenu(ctx, q, "Unknown category.", b.mainMenu())
		return
	}
	b.deliverFile(ctx, q, cat, domain.DecodeFileToken(token))
}

func (b *Bot) deliverFile(ctx context.Context, q *domain.Callback, cat domain.Category, name string) {
	src, err := b.store.Get(ctx, cat.Key, name)
	if errors.Is(err, domain.ErrNotFound) {
		b.editMenu(ctx, q, "File not found (maybe expired).", b.mainMenu())
		return
	}
	if err != nil {
		log.Printf("[Bot] get %s/%s failed: %v", cat.Key, name, err)
		b.editMenu(ctx, q, "File is unavailable right now.", b.mainMenu())
		return
	}
	defer src.Close()

	if err := b.transport.SendDocumentUpload(ctx, q.ChatID, name, src, cat.Label); err != nil {
		log.Printf("[Bot] send document %s/%s failed: %v", cat.Key, name, err)
		return
	}
	b.editMenu(ctx, q, "Main menu:", b.mainMenu())
}

// ---------------------------------------------------------------------------
// Menus and text builders

func (b *Bot) mainMenu() domain.Keyboard {
	var kb domain.Keyboard
	for _, p := range domain.Providers(b.categories) {
		kb = append(kb, domain.Row(strings.ToUpper(p), "menu_"+p))
	}
	kb = append(kb, []domain.Button{
		{Label: "Contact Admin", Data: "contact_admin"},
		{Label: "Donate", Data: "donate_menu"},
	})
	kb = append(kb, []domain.Button{
		{Label: "My Profile", Data: "my_profile"},
		{Label: "Admin Panel", Data: "admin_panel"},
	})
	return kb
}

func (b *Bot) providerMenu(provider string) domain.Keyboard {
	var kb domain.Keyboard
	for _, c := range b.categories {
		if c.Provider() == provider {
			kb = append(kb, domain.Row(c.Label, "cat:"+c.Key))
		}
	}
	kb = append(kb, domain.Row("Back", "back_main"))
	return kb
}

func (b *Bot) adminPanelMenu() domain.Keyboard {
	return domain.Keyboard{
		domain.Row("Upload File", "admin_upload"),
		{
			{Label: "List Files", Data: "admin_listfiles"},
			{Label: "Stats", Data: "admin_stats"},
		},
		{
			{Label: "Broadcast Text", Data: "admin_broadcast_text"},
			{Label: "Broadcast Media", Data: "admin_broadcast_media"},
		},
		domain.Row("Logout", "admin_logout"),
		domain.Row("Back", "back_main"),
	}
}

func (b *Bot) categoryPicker() domain.Keyboard {
	var kb domain.Keyboard
	for _, c := range b.categories {
		kb = append(kb, domain.Row(c.Label, "upload:"+c.Key))
	}
	kb = append(kb, domain.Row("Cancel", "back_main"))
	return kb
}

func (b *Bot) profileText(ctx context.Context, id int64) string {
	rec, err := b.recipients.Get(ctx, id)
	if err != nil {
		return fmt.Sprintf("User Profile\n\nID: %d\nFirst seen: n/a", id)
	}
	return fmt.Sprintf("User Profile\n\nID: %d\nUsername: @%s\nFirst seen: %s",
		rec.ID, rec.DisplayName, rec.FirstSeen.UTC().Format("2006-01-02 15:04 UTC"))
}

func (b *Bot) filesSummary() string {
	var lines []string
	for _, c := range b.categories {
		files, err := b.store.List(c.Key)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s: unavailable", c.Label))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d file(s)", c.Label, len(files)))
	}
	return strings.Join(lines, "\n")
}

func buttonLabel(name string) string {
	r := []rune(name)
	if len(r) <= 30 {
		return name
	}
	return string(r[:27]) + "..."
}

// ---------------------------------------------------------------------------
// Send helpers

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.transport.SendText(ctx, chatID, text); err != nil {
		log.Printf("[Bot] reply failed: %v", err)
	}
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64, text string, kb domain.Keyboard) {
	if err := b.transport.SendMenu(ctx, chatID, text, kb); err != nil {
		log.Printf("[Bot] send menu failed: %v", err)
	}
}

func (b *Bot) editMenu(ctx context.Context, q *domain.Callback, text string, kb domain.Keyboard) {
	if err := b.transport.EditMenu(ctx, q.ChatID, q.MessageID, text, kb); err != nil {
		log.Printf("[Bot] edit menu failed: %v", err)
	}
}
