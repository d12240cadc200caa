package notify

import (
	"errors"
	"fmt"
	"strings"

	"ordersbot/internal/ledger"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

// FormatOrder renders one order as a short multi-line block.
func FormatOrder(o models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 %s", o.ID)
	if o.Customer != "" {
		fmt.Fprintf(&b, " · %s", o.Customer)
	}
	fmt.Fprintf(&b, "\nSản phẩm: %s (%d ngày)", o.ProductCode, o.TermDays)
	fmt.Fprintf(&b, "\nNguồn: %s", o.SourceName)
	fmt.Fprintf(&b, "\nHiệu lực: %s → %s", ledger.FormatDate(o.RegistrationDate), ledger.FormatDate(o.ExpiryDate))
	fmt.Fprintf(&b, "\nGiá nhập: %s · Giá bán: %s", ledger.FormatAmount(o.CostPrice), ledger.FormatAmount(o.SalePrice))
	if o.Note != "" {
		fmt.Fprintf(&b, "\nGhi chú: %s", o.Note)
	}
	return b.String()
}

// FormatRenewal renders a renewal result for the operator.
func FormatRenewal(res renewal.Result) string {
	switch res.Outcome {
	case renewal.OutcomeRenewal:
		prev, next := res.Details.Previous, res.Details.Order
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Đã gia hạn %s\n", next.ID)
		fmt.Fprintf(&b, "Kỳ mới: %s → %s\n", ledger.FormatDate(next.RegistrationDate), ledger.FormatDate(next.ExpiryDate))
		fmt.Fprintf(&b, "Giá nhập: %s · Giá bán: %s", ledger.FormatAmount(next.CostPrice), ledger.FormatAmount(next.SalePrice))
		if !res.Details.PriceRefreshed {
			b.WriteString("\n⚠️ Không tìm thấy giá mới, giữ giá cũ")
		} else if prev.CostPrice != next.CostPrice || prev.SalePrice != next.SalePrice {
			fmt.Fprintf(&b, "\n(giá cũ %s / %s)", ledger.FormatAmount(prev.CostPrice), ledger.FormatAmount(prev.SalePrice))
		}
		return b.String()
	case renewal.OutcomeSkipped:
		return fmt.Sprintf("⏭ %s chưa đến hạn gia hạn (còn %d ngày)", res.OrderID, res.Details.DaysRemaining)
	default:
		return fmt.Sprintf("❌ Gia hạn %s thất bại: %s", res.OrderID, res.Message)
	}
}

// FormatReconciliation renders the outcome of a payment reconciliation.
func FormatReconciliation(res *reconciliation.Result, err error) string {
	switch {
	case err == nil && res != nil && res.Matched:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Đối soát %s: %s\n", res.Source, ledger.FormatAmount(res.AchievedTotal))
		fmt.Fprintf(&b, "Đã đánh dấu %d đơn: %s", len(res.OrderIDs), strings.Join(res.OrderIDs, ", "))
		if res.Cycle != "" {
			fmt.Fprintf(&b, "\nKỳ %s: %s", res.Cycle, res.Status)
		}
		return b.String()
	case errors.Is(err, reconciliation.ErrNoExactMatch) && res != nil:
		return fmt.Sprintf("⚠️ Đối soát %s không khớp: cần %s, chỉ ghép được %s (%d đơn). Không có thay đổi.",
			res.Source, ledger.FormatAmount(res.Expected), ledger.FormatAmount(res.AchievedTotal), len(res.OrderIDs))
	case errors.Is(err, reconciliation.ErrAlreadySettled):
		return "ℹ️ Kỳ thanh toán hiện tại đã được thanh toán đủ."
	case errors.Is(err, ledger.ErrSourceNotFound):
		return fmt.Sprintf("❌ Không tìm thấy nguồn: %v", err)
	case err != nil:
		return fmt.Sprintf("❌ Đối soát thất bại: %v", err)
	default:
		return "❌ Đối soát không có kết quả"
	}
}

// FormatUnpaid renders the outstanding queue of a source.
func FormatUnpaid(u *orders.Unpaid) string {
	if len(u.Orders) == 0 {
		return fmt.Sprintf("Nguồn %s không có đơn chưa thanh toán.", u.Source)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Đơn chưa thanh toán · %s\n", u.Source)
	for i, o := range u.Orders {
		fmt.Fprintf(&b, "%d. %s · %s · %s · %s\n", i+1, o.ID, o.ProductCode,
			ledger.FormatDate(o.RegistrationDate), ledger.FormatAmount(o.CostPrice))
	}
	fmt.Fprintf(&b, "Tổng: %s", ledger.FormatAmount(u.Total))
	return b.String()
}

// FormatExpiring renders orders due for renewal.
func FormatExpiring(list []models.Order) string {
	if len(list) == 0 {
		return "Không có đơn sắp hết hạn."
	}
	var b strings.Builder
	b.WriteString("⏰ Đơn sắp hết hạn\n")
	for i, o := range list {
		fmt.Fprintf(&b, "%d. %s · %s · %s · hết hạn %s\n", i+1, o.ID, o.Customer, o.ProductCode, ledger.FormatDate(o.ExpiryDate))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRefund renders a refunded order with the amount owed to the customer.
func FormatRefund(r orders.Refund) string {
	return fmt.Sprintf("↩️ Hoàn tiền %s · %s\nCòn %d ngày · hoàn %s\n\n%s",
		r.Order.ID, r.Order.Customer, r.DaysRemaining, ledger.FormatAmount(r.Amount), FormatOrder(r.Order))
}

// FormatSources renders suppliers with their payment info.
func FormatSources(list []models.Source) string {
	if len(list) == 0 {
		return "Chưa có nguồn nào."
	}
	var b strings.Builder
	for _, s := range list {
		fmt.Fprintf(&b, "• %s", s.Name)
		if s.BankAccount != "" {
			fmt.Fprintf(&b, " · %s %s", s.BankAccount, s.BankCode)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
