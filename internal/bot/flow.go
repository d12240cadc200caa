package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"ordersbot/internal/ledger"
	"ordersbot/internal/notify"
	"ordersbot/internal/orders"
	"ordersbot/pkg/models"
)

func (b *Bot) startOrder(chatID int64) {
	sess := Session{}
	if err := sess.Advance(); err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.sessions.put(chatID, sess)
	b.replyWithMarkup(chatID, "Loại khách?", keyboard(labelRetail, labelPartner, labelCancel))
}

// handleStep feeds one free-text answer into the chat's order entry flow.
func (b *Bot) handleStep(ctx context.Context, chatID int64, sess Session, text string) {
	if text == labelCancel {
		b.sessions.drop(chatID)
		b.replyWithMarkup(chatID, "Đã huỷ.", tgbotapi.NewRemoveKeyboard(false))
		return
	}

	switch sess.Step {
	case StepClass:
		class, ok := map[string]models.CustomerClass{
			labelRetail:  models.ClassRetail,
			labelPartner: models.ClassPartner,
		}[text]
		if !ok || sess.SetClass(class) != nil {
			b.replyWithMarkup(chatID, "Chọn loại khách.", keyboard(labelRetail, labelPartner, labelCancel))
			return
		}
		b.sessions.put(chatID, sess)
		b.replyWithMarkup(chatID, "Mã sản phẩm (vd NETFLIX--3m), có thể kèm tên khách sau dấu cách.", keyboard(labelCancel))

	case StepProduct:
		code, customer, _ := strings.Cut(text, " ")
		if err := sess.SetProduct(code, strings.TrimSpace(customer)); err != nil {
			b.reply(chatID, "❌ Mã sản phẩm cần có thời hạn dạng --<số tháng>m, vd NETFLIX--3m.")
			return
		}
		b.sessions.put(chatID, sess)
		b.promptSource(ctx, chatID)

	case StepSource:
		src, err := b.deps.Orders.ResolveSource(ctx, text)
		if err != nil {
			b.reply(chatID, errorText(err))
			return
		}
		if err := sess.SetSource(src.Name); err != nil {
			b.reply(chatID, errorText(err))
			return
		}
		b.sessions.put(chatID, sess)
		b.replyWithMarkup(chatID, "Ngày đăng ký (dd/mm/yyyy)?", keyboard(labelToday, labelCancel))

	case StepDate:
		today := b.deps.Orders.Today()
		day := today
		if text != labelToday {
			parsed, err := ledger.ParseDate(text, today.Location())
			if err != nil {
				b.reply(chatID, "❌ Ngày không hợp lệ, nhập theo dạng dd/mm/yyyy.")
				return
			}
			day = parsed
		}
		if err := sess.SetDate(day); err != nil {
			b.reply(chatID, errorText(err))
			return
		}
		b.sessions.put(chatID, sess)
		b.replyWithMarkup(chatID, preview(sess.Draft), keyboard(labelConfirm, labelCancel))

	case StepConfirm:
		if text != labelConfirm {
			b.replyWithMarkup(chatID, preview(sess.Draft), keyboard(labelConfirm, labelCancel))
			return
		}
		ord, err := b.deps.Orders.Create(ctx, sess.Draft)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("product", sess.Draft.ProductCode).Msg("Order creation failed")
			b.reply(chatID, errorText(err))
			return
		}
		b.sessions.drop(chatID)
		b.replyWithMarkup(chatID, "✅ Đã tạo đơn\n"+notify.FormatOrder(ord), tgbotapi.NewRemoveKeyboard(false))

	default:
		b.sessions.drop(chatID)
		b.reply(chatID, "Gõ /new để tạo đơn.")
	}
}

func (b *Bot) promptSource(ctx context.Context, chatID int64) {
	labels := []string{}
	if list, err := b.deps.Orders.Sources(ctx); err == nil {
		for _, s := range list {
			labels = append(labels, s.Name)
		}
	} else {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to list sources")
	}
	labels = append(labels, labelCancel)
	b.replyWithMarkup(chatID, "Nguồn (tên hoặc số tài khoản)?", keyboard(labels...))
}

func preview(d orders.Draft) string {
	class := labelRetail
	if d.Class == models.ClassPartner {
		class = labelPartner
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Xác nhận đơn mới:\nLoại khách: %s\nSản phẩm: %s\nNguồn: %s\nNgày đăng ký: %s",
		class, d.ProductCode, d.Source, ledger.FormatDate(d.Registered))
	if d.Customer != "" {
		fmt.Fprintf(&sb, "\nKhách: %s", d.Customer)
	}
	return sb.String()
}

// keyboard lays out labels two per row.
func keyboard(labels ...string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(labels); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(labels[i])}
		if i+1 < len(labels) {
			row = append(row, tgbotapi.NewKeyboardButton(labels[i+1]))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
