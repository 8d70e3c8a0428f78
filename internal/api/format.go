package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/entity"
)

// formatReview описывает результат проверки до записи.
func formatReview(insp *entity.Inspection) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 Штрихкод: %s\n", insp.Barcode)

	if len(insp.Defects) == 0 {
		sb.WriteString("✅ Дефекты не обнаружены.\n")
	} else {
		fmt.Fprintf(&sb, "❗ Найдено дефектов: %d\n", len(insp.Defects))
		for _, d := range insp.Defects {
			fmt.Fprintf(&sb, "• %s — %.2f\n", d.Type, d.Confidence)
		}
	}

	fmt.Fprintf(&sb, "\nСтатус: %s\nЗаписать результат в базу?", insp.Verdict.QualityStatus)
	return sb.String()
}

// formatOutcome описывает итог записи и прочитанную запись.
func formatOutcome(out *app.ReviewOutcome) string {
	var sb strings.Builder
	switch out.Outcome.Status() {
	case entity.UpdateNotFound:
		fmt.Fprintf(&sb, "⚠️ Штрихкод %s не найден в базе, запись не изменена.", out.Barcode)
		return sb.String()
	case entity.UpdateModified:
		fmt.Fprintf(&sb, "💾 Запись %s обновлена: %s (%s).", out.Barcode, out.Verdict.QualityStatus, out.Verdict.DefectType)
	default:
		fmt.Fprintf(&sb, "ℹ️ Запись %s уже содержит этот результат.", out.Barcode)
	}

	if r := out.Record; r != nil {
		sb.WriteString("\n\n")
		sb.WriteString(formatRecord(*r))
	}
	return sb.String()
}

func formatRecord(r entity.ScanRecord) string {
	lines := []string{
		fmt.Sprintf("Изделие: %s", r.ProductID),
		fmt.Sprintf("Смена: %s", r.ShiftID),
	}
	if r.ManufacturingDate != "" {
		lines = append(lines, fmt.Sprintf("Дата выпуска: %s", r.ManufacturingDate))
	}
	if r.OperatorName != "" {
		lines = append(lines, fmt.Sprintf("Оператор: %s", r.OperatorName))
	}
	lines = append(lines, fmt.Sprintf("Статус: %s (%s)", r.QualityStatus, r.DefectType))
	if r.LastUpdated != "" {
		lines = append(lines, fmt.Sprintf("Обновлено: %s", r.LastUpdated))
	}
	return strings.Join(lines, "\n")
}

func formatStats(s entity.QualityStats) string {
	return fmt.Sprintf("📊 Всего плат: %d\n❗ С дефектами: %d\n✅ Без дефектов: %d\n⏳ Не проверено: %d",
		s.Total, s.Defective, s.NoDefect, s.Total-s.Defective-s.NoDefect)
}

func formatRecent(records []entity.ScanRecord) string {
	if len(records) == 0 {
		return msgNoRecords
	}
	var sb strings.Builder
	sb.WriteString("🕑 Последние записи:\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "\n%s · %s · %s", r.Barcode, r.QualityStatus, r.DefectType)
	}
	return sb.String()
}

func reviewKeyboard(reviewID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Записать", callbackCommit+":"+reviewID),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Отменить", callbackDiscard+":"+reviewID),
		),
	)
}

// parseCallback разбирает данные кнопки вида action:uuid.
func parseCallback(data string) (string, uuid.UUID, error) {
	action, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("missing separator")
	}
	if action != callbackCommit && action != callbackDiscard {
		return "", uuid.Nil, fmt.Errorf("unknown action %q", action)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("parse review id: %w", err)
	}
	return action, id, nil
}
