package main

import (
	"log"

	"github.com/slack-go/slack"
)

// notifySlack posts a one-line summary to the configured channel. Does
// nothing when Slack is not configured; failures are logged, not returned.
func notifySlack(cfg Config, msg string) {
	if !cfg.SlackConfigured() {
		return
	}

	api := slack.New(cfg.SlackBotToken)
	_, _, err := api.PostMessage(cfg.SlackChannel, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("Error posting to Slack channel %s: %v", cfg.SlackChannel, err)
		return
	}
	log.Printf("slack notify channel=%s", cfg.SlackChannel)
}
