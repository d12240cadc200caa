package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"ordersbot/internal/export"
	"ordersbot/internal/ledger"
	"ordersbot/internal/notify"
	"ordersbot/internal/ocr"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/pkg/models"
)

const helpText = `Các lệnh:
/new - tạo đơn mới
/renew <mã đơn> - gia hạn đơn
/reconcile <nguồn> [số tiền] - đối soát thanh toán nguồn
/unpaid <nguồn> - đơn chưa thanh toán
/export <nguồn> - xuất file đơn chưa thanh toán
/expiring - đơn sắp hết hạn
/sources - danh sách nguồn
/paid <mã đơn> [false] - đánh dấu đã/chưa thanh toán
/delete <mã đơn> - xoá đơn
/refund <mã đơn> - huỷ đơn và tính tiền hoàn cho khách
/cancel - huỷ thao tác
Gửi ảnh biên lai kèm chú thích "/paid <nguồn>" để đối soát theo số tiền trên ảnh.`

// Reply keyboard labels for the order entry flow.
const (
	labelRetail  = "Khách lẻ"
	labelPartner = "Cộng tác viên"
	labelToday   = "Hôm nay"
	labelConfirm = "Xác nhận"
	labelCancel  = "Huỷ"
)

func (b *Bot) handleCommand(ctx context.Context, chatID int64, name string, args []string) {
	switch name {
	case "start", "help":
		b.reply(chatID, helpText)
	case "cancel":
		if b.sessions.drop(chatID) {
			b.replyWithMarkup(chatID, "Đã huỷ.", tgbotapi.NewRemoveKeyboard(false))
			return
		}
		b.reply(chatID, "Không có thao tác nào đang chạy.")
	case "new":
		b.startOrder(chatID)
	case "renew":
		b.cmdRenew(ctx, chatID, args)
	case "reconcile":
		b.cmdReconcile(ctx, chatID, args)
	case "unpaid":
		b.cmdUnpaid(ctx, chatID, args)
	case "export":
		b.cmdExport(ctx, chatID, args)
	case "expiring":
		b.cmdExpiring(ctx, chatID)
	case "sources":
		b.cmdSources(ctx, chatID)
	case "paid":
		b.cmdPaid(ctx, chatID, args)
	case "delete":
		b.cmdDelete(ctx, chatID, args)
	case "refund":
		b.cmdRefund(ctx, chatID, args)
	default:
		b.reply(chatID, "Lệnh không hợp lệ. Gõ /start để xem các lệnh.")
	}
}

func (b *Bot) cmdRenew(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Cú pháp: /renew <mã đơn>")
		return
	}
	res, _ := b.deps.Renewer.Renew(ctx, strings.ToUpper(args[0]))
	b.reply(chatID, notify.FormatRenewal(res))
}

func (b *Bot) cmdReconcile(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, "Cú pháp: /reconcile <nguồn> [số tiền]")
		return
	}

	// The amount, when given, is the last argument; source names may contain spaces.
	source := strings.Join(args, " ")
	var amount int64
	if len(args) > 1 {
		if n, err := ledger.ParseAmount(args[len(args)-1]); err == nil {
			amount = n
			source = strings.Join(args[:len(args)-1], " ")
		}
	}

	src, err := b.deps.Orders.ResolveSource(ctx, source)
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}

	var res *reconciliation.Result
	if amount != 0 {
		res, err = b.deps.Reconciler.Reconcile(ctx, src.Name, amount)
	} else {
		res, err = b.deps.Reconciler.ReconcileCurrentCycle(ctx, src.Name)
	}
	b.reply(chatID, notify.FormatReconciliation(res, err))
}

func (b *Bot) cmdUnpaid(ctx context.Context, chatID int64, args []string) {
	u, ok := b.unpaid(ctx, chatID, "unpaid", args)
	if !ok {
		return
	}
	b.reply(chatID, notify.FormatUnpaid(u))
}

func (b *Bot) cmdExport(ctx context.Context, chatID int64, args []string) {
	u, ok := b.unpaid(ctx, chatID, "export", args)
	if !ok {
		return
	}
	if len(u.Orders) == 0 {
		b.reply(chatID, notify.FormatUnpaid(u))
		return
	}

	var buf bytes.Buffer
	if err := export.UnpaidXLSX(&buf, u); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("source", u.Source).Msg("Export failed")
		b.reply(chatID, errorText(err))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: export.FileName(u.Source), Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("%s · %d đơn · %s", u.Source, len(u.Orders), ledger.FormatAmount(u.Total))
	b.send(doc)
}

func (b *Bot) unpaid(ctx context.Context, chatID int64, cmd string, args []string) (*orders.Unpaid, bool) {
	if len(args) == 0 {
		b.reply(chatID, fmt.Sprintf("Cú pháp: /%s <nguồn>", cmd))
		return nil, false
	}
	src, err := b.deps.Orders.ResolveSource(ctx, strings.Join(args, " "))
	if err != nil {
		b.reply(chatID, errorText(err))
		return nil, false
	}
	u, err := b.deps.Orders.Unpaid(ctx, src.Name)
	if err != nil {
		b.reply(chatID, errorText(err))
		return nil, false
	}
	return u, true
}

func (b *Bot) cmdExpiring(ctx context.Context, chatID int64) {
	list, err := b.deps.Orders.Expiring(ctx)
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, notify.FormatExpiring(list))
}

func (b *Bot) cmdSources(ctx context.Context, chatID int64) {
	list, err := b.deps.Orders.Sources(ctx)
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, notify.FormatSources(list))
}

func (b *Bot) cmdPaid(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 || len(args) > 2 {
		b.reply(chatID, "Cú pháp: /paid <mã đơn> [false]")
		return
	}
	flag := models.PaidDone
	if len(args) == 2 {
		flag = models.ParsePaidFlag(args[1])
	}
	ord, err := b.deps.Orders.SetPaid(ctx, strings.ToUpper(args[0]), flag)
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ %s: %s", ord.ID, flag))
}

func (b *Bot) cmdDelete(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Cú pháp: /delete <mã đơn>")
		return
	}
	ord, err := b.deps.Orders.Delete(ctx, strings.ToUpper(args[0]))
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, "🗑 Đã xoá\n"+notify.FormatOrder(ord))
}

func (b *Bot) cmdRefund(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.reply(chatID, "Cú pháp: /refund <mã đơn>")
		return
	}
	r, err := b.deps.Orders.Refund(ctx, strings.ToUpper(args[0]))
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, notify.FormatRefund(r))
}

// handlePhoto reads a transfer receipt and reconciles the source named in the caption against
// the amount printed on it.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	log := zerolog.Ctx(ctx)

	name, args, ok := parseCommand(msg.Caption)
	if !ok || name != "paid" || len(args) == 0 {
		b.reply(chatID, `Gửi ảnh biên lai kèm chú thích "/paid <nguồn>".`)
		return
	}
	if b.deps.Receipts == nil {
		b.reply(chatID, "❌ Chưa cấu hình đọc biên lai.")
		return
	}

	src, err := b.deps.Orders.ResolveSource(ctx, strings.Join(args, " "))
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}

	// The last size is the largest.
	photo := msg.Photo[len(msg.Photo)-1]
	url, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		log.Error().Err(err).Str("file_id", photo.FileID).Msg("Failed to resolve photo URL")
		b.reply(chatID, "❌ Không tải được ảnh.")
		return
	}
	body, err := b.fetch(ctx, url)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download photo")
		b.reply(chatID, "❌ Không tải được ảnh.")
		return
	}
	defer body.Close()

	receipt, err := b.deps.Receipts.ReadReceipt(ctx, body)
	if err != nil {
		log.Error().Err(err).Msg("Receipt OCR failed")
		if errors.Is(err, ocr.ErrNoAmount) {
			b.reply(chatID, "❌ Không đọc được số tiền trên biên lai.")
			return
		}
		b.reply(chatID, errorText(err))
		return
	}

	log.Info().
		Str("source", src.Name).
		Int64("amount", receipt.Amount).
		Float32("confidence", receipt.Confidence).
		Msg("Receipt read")

	res, err := b.deps.Reconciler.Reconcile(ctx, src.Name, receipt.Amount)
	b.reply(chatID, fmt.Sprintf("🧾 Biên lai: %s\n%s", ledger.FormatAmount(receipt.Amount), notify.FormatReconciliation(res, err)))
}

// errorText renders an error for the operator.
func errorText(err error) string {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		return "❌ " + verr.Message
	case errors.Is(err, ledger.ErrOrderNotFound):
		return fmt.Sprintf("❌ Không tìm thấy đơn: %v", err)
	case errors.Is(err, ledger.ErrSourceNotFound):
		return fmt.Sprintf("❌ Không tìm thấy nguồn: %v", err)
	default:
		return fmt.Sprintf("❌ Lỗi: %v", err)
	}
}
