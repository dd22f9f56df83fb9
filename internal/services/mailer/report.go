// -----------------------------------------------------------------------
// Weekly report email - Spanish-language digest of the week's analyses,
// one email per user covering their watchlist
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

const dashboardURL = "https://www.trading-spot.vip/dashboard"

// ReportStats summarizes one weekly report dispatch.
type ReportStats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func spanishDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

// formatWeekRange renders "lunes — viernes" of the analysis week.
func formatWeekRange(weekStart string) string {
	start, err := time.Parse(common.DateFormat, weekStart)
	if err != nil {
		return weekStart
	}
	end := start.AddDate(0, 0, 4)
	return fmt.Sprintf("%s — %s", spanishDate(start), spanishDate(end))
}

func directionLabel(direction string) string {
	switch direction {
	case models.PredictionUp:
		return "↑ Alcista"
	case models.PredictionDown:
		return "↓ Bajista"
	case models.PredictionSideways:
		return "→ Lateral"
	default:
		return "— Sin datos"
	}
}

func directionColor(direction string) string {
	switch direction {
	case models.PredictionUp:
		return "#22C55E"
	case models.PredictionDown:
		return "#EF4444"
	default:
		return "#F59E0B"
	}
}

func confidenceBadgeStyle(level string) string {
	switch level {
	case models.ConfidenceHigh:
		return "background:#DCFCE7;color:#16A34A"
	case models.ConfidenceMedium:
		return "background:#FEF3C7;color:#D97706"
	default:
		return "background:#FEE2E2;color:#DC2626"
	}
}

func confidenceLabel(level string) string {
	switch level {
	case models.ConfidenceHigh:
		return "Alta"
	case models.ConfidenceMedium:
		return "Media"
	case models.ConfidenceLow:
		return "Baja"
	default:
		return "—"
	}
}

// BuildWeeklyReportEmail renders the subject, HTML body and plain text
// alternative for one user's weekly digest. Pure function, safe to call
// from tests and previews.
func BuildWeeklyReportEmail(weekStart string, analyses []*models.WeeklyAnalysis) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("Tu reporte semanal de Trading Spot — Semana del %s", weekStart)
	weekRange := formatWeekRange(weekStart)

	plural := "s"
	if len(analyses) == 1 {
		plural = ""
	}

	var rows strings.Builder
	var text strings.Builder
	text.WriteString(fmt.Sprintf("Trading Spot — Reporte semanal (%s)\n\n", weekRange))

	for _, a := range analyses {
		dirLabel := directionLabel(a.PredictedDirection)
		confLabel := confidenceLabel(a.ConfidenceLevel)
		summary := a.SummaryES
		if summary == "" {
			summary = "Sin resumen disponible."
		}

		rows.WriteString(fmt.Sprintf(`
        <tr>
          <td style="padding:16px;border-bottom:1px solid #E5E7EB;vertical-align:top">
            <table width="100%%" cellpadding="0" cellspacing="0" style="border:0">
              <tr>
                <td>
                  <span style="font-family:monospace;font-size:16px;font-weight:700;color:#171717">%s</span>
                </td>
                <td align="right">
                  <span style="font-weight:700;font-size:14px;color:%s">%s</span>
                </td>
              </tr>
              <tr>
                <td colspan="2" style="padding-top:6px">
                  <span style="display:inline-block;padding:2px 8px;border-radius:4px;font-size:12px;font-weight:600;%s">
                    Confianza %s · %d%%
                  </span>
                </td>
              </tr>
              <tr>
                <td colspan="2" style="padding-top:10px;font-size:14px;color:#374151;line-height:1.5">
                  %s
                </td>
              </tr>
            </table>
          </td>
        </tr>`,
			html.EscapeString(a.Ticker),
			directionColor(a.PredictedDirection),
			dirLabel,
			confidenceBadgeStyle(a.ConfidenceLevel),
			confLabel,
			a.ConfidenceScore,
			html.EscapeString(summary),
		))

		text.WriteString(fmt.Sprintf("%s: %s (Confianza %s, %d%%)\n%s\n\n",
			a.Ticker, dirLabel, confLabel, a.ConfidenceScore, summary))
	}

	text.WriteString("Ver dashboard completo: " + dashboardURL + "\n")

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>%s</title>
</head>
<body style="margin:0;padding:0;background:#F3F4F6;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif">
  <table width="100%%" cellpadding="0" cellspacing="0" style="border:0;background:#F3F4F6">
    <tr>
      <td align="center" style="padding:32px 16px">
        <table width="600" cellpadding="0" cellspacing="0" style="max-width:600px;width:100%%;border:0">

          <!-- Header -->
          <tr>
            <td style="background:#171717;border-radius:12px 12px 0 0;padding:32px 32px 24px">
              <p style="margin:0;font-size:22px;font-weight:800;color:#FFFFFF;letter-spacing:-0.5px">Trading Spot</p>
              <p style="margin:8px 0 0;font-size:14px;color:#9CA3AF">Reporte semanal · %s</p>
            </td>
          </tr>

          <!-- Body -->
          <tr>
            <td style="background:#FFFFFF;padding:24px 32px 8px">
              <p style="margin:0 0 4px;font-size:16px;color:#374151">Hola,</p>
              <p style="margin:0 0 24px;font-size:15px;color:#6B7280">
                Aquí está tu análisis semanal para los %d ticker%s en tu watchlist.
              </p>
            </td>
          </tr>

          <!-- Ticker rows -->
          <tr>
            <td style="background:#FFFFFF;padding:0 32px">
              <table width="100%%" cellpadding="0" cellspacing="0" style="border:1px solid #E5E7EB;border-radius:8px;border-collapse:collapse">
                %s
              </table>
            </td>
          </tr>

          <!-- CTA -->
          <tr>
            <td style="background:#FFFFFF;padding:28px 32px;text-align:center">
              <a href="%s"
                 style="display:inline-block;background:#171717;color:#FFFFFF;text-decoration:none;padding:12px 28px;border-radius:8px;font-size:14px;font-weight:600">
                Ver dashboard completo →
              </a>
            </td>
          </tr>

          <!-- Footer -->
          <tr>
            <td style="background:#F9FAFB;border-radius:0 0 12px 12px;border-top:1px solid #E5E7EB;padding:20px 32px;text-align:center">
              <p style="margin:0;font-size:12px;color:#9CA3AF">
                Podés desactivar estos emails en
                <a href="%s/settings" style="color:#6B7280">Configuración</a>.
              </p>
              <p style="margin:8px 0 0;font-size:12px;color:#D1D5DB">© %d Trading Spot</p>
            </td>
          </tr>

        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		html.EscapeString(subject),
		weekRange,
		len(analyses),
		plural,
		rows.String(),
		dashboardURL,
		dashboardURL,
		time.Now().UTC().Year(),
	)

	return subject, htmlBody, text.String()
}

// SendWeeklyReports emails every user whose watchlist has analyses for
// the current week. Users without a watchlist, without analyses this
// week, or whose ID is not a deliverable address are skipped. Send
// failures are counted per user and never abort the loop.
func (s *Service) SendWeeklyReports(ctx context.Context, storage interfaces.StorageManager) (*ReportStats, error) {
	stats := &ReportStats{}

	users, err := storage.WatchlistStorage().AllUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist users: %w", err)
	}

	if len(users) == 0 {
		s.logger.Info().Msg("No watchlist users, nothing to send")
		return stats, nil
	}

	if !s.IsConfigured(ctx) {
		s.logger.Warn().Int("users", len(users)).Msg("SMTP not configured, skipping weekly reports")
		stats.Skipped = len(users)
		return stats, nil
	}

	weekStart := common.WeekStart(time.Now().UTC()).Format(common.DateFormat)

	for _, userID := range users {
		// User IDs are email addresses; anything else is undeliverable.
		if !strings.Contains(userID, "@") {
			s.logger.Warn().Str("user", userID).Msg("User ID is not an email address, skipping")
			stats.Skipped++
			continue
		}

		entries, err := storage.WatchlistStorage().ListByUser(userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user", userID).Msg("Failed to load watchlist")
			stats.Failed++
			continue
		}

		if len(entries) == 0 {
			stats.Skipped++
			continue
		}

		tickers := make([]string, 0, len(entries))
		for _, e := range entries {
			tickers = append(tickers, e.Ticker)
		}

		analyses, err := storage.AnalysisStorage().ListByTickersWeek(tickers, weekStart)
		if err != nil {
			s.logger.Error().Err(err).Str("user", userID).Msg("Failed to load analyses")
			stats.Failed++
			continue
		}

		if len(analyses) == 0 {
			s.logger.Debug().Str("user", userID).Str("week_start", weekStart).Msg("No analyses for user's watchlist this week, skipping")
			stats.Skipped++
			continue
		}

		subject, htmlBody, textBody := BuildWeeklyReportEmail(weekStart, analyses)

		if err := s.sendFunc()(ctx, userID, subject, htmlBody, textBody); err != nil {
			s.logger.Error().Err(err).Str("user", userID).Msg("Failed to send weekly report")
			stats.Failed++
			continue
		}

		s.logger.Info().
			Str("user", userID).
			Int("tickers", len(analyses)).
			Msg("Weekly report sent")
		stats.Sent++
	}

	s.logger.Info().
		Str("week_start", weekStart).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Msg("Weekly report dispatch complete")

	return stats, nil
}

func (s *Service) sendFunc() func(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.send != nil {
		return s.send
	}
	return s.SendHTMLEmail
}
