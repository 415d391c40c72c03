package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// AdminAlerts posts intake events to the administrators' Discord channel
// through a webhook. A zero-value or unconfigured AdminAlerts is a no-op.
type AdminAlerts struct {
	session   *discordgo.Session
	webhookID string
	token     string
	log       *zap.Logger
}

func NewAdminAlerts(webhookURL string) *AdminAlerts {
	a := &AdminAlerts{log: logger.Named("discord-webhook")}
	if webhookURL == "" {
		return a
	}
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		a.log.Warn("admin webhook disabled", zap.Error(err))
		return a
	}
	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		a.log.Warn("admin webhook disabled", zap.Error(err))
		return a
	}
	session.Client.Timeout = 10 * time.Second
	a.session, a.webhookID, a.token = session, id, token
	return a
}

// parseWebhookURL extracts id and token from .../api/webhooks/{id}/{token}.
func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("not a webhook url: %s", u.Redacted())
}

func (a *AdminAlerts) Enabled() bool { return a != nil && a.session != nil }

func (a *AdminAlerts) send(embed *discordgo.MessageEmbed) {
	if !a.Enabled() {
		return
	}
	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "GranTES Admin"}
	go func() {
		_, err := a.session.WebhookExecute(a.webhookID, a.token, false, &discordgo.WebhookParams{
			Username: "GranTES Portal",
			Embeds:   []*discordgo.MessageEmbed{embed},
		})
		if err != nil {
			a.log.Warn("send error", zap.Error(err))
		}
	}()
}

// ApplicationSubmitted posts a new application.
func (a *AdminAlerts) ApplicationSubmitted(app *model.Application) {
	a.send(applicationEmbed(app))
}

func applicationEmbed(app *model.Application) *discordgo.MessageEmbed {
	name := strings.TrimSpace(app.GivenName + " " + app.LastName)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Student ID", Value: orDash(app.StudentID), Inline: true},
		{Name: "Program", Value: orDash(app.ProgramName), Inline: true},
		{Name: "Year", Value: orDash(app.YearLevel), Inline: true},
		{Name: "Income range", Value: orDash(app.IncomeRange), Inline: true},
	}
	if app.IsPWD {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "PWD", Value: "yes", Inline: true})
	}
	if app.IsIndigenous {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Indigenous", Value: "yes", Inline: true})
	}
	return &discordgo.MessageEmbed{
		Title:       "New application",
		Description: fmt.Sprintf("%s (%s)", orDash(name), app.Email),
		Color:       0x3B82F6,
		Fields:      fields,
	}
}

// ApplicationApproved posts an approval and whether the credentials went out.
func (a *AdminAlerts) ApplicationApproved(st *model.Student, creds model.CredentialsResult) {
	color := 0x2ECC71
	if !creds.Success {
		color = 0xE67E22
	}
	a.send(&discordgo.MessageEmbed{
		Title:       "Application approved",
		Description: st.DisplayName(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Award number", Value: st.AwardNumber, Inline: true},
			{Name: "Credentials", Value: creds.Message, Inline: true},
		},
	})
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
