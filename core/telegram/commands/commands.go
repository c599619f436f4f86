// Package commands describes the slash commands a bot registers.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is one slash command of the bot.
type Command struct {
	Handler tele.HandlerFunc
	// Description is the text shown in the Telegram command menu.
	Description string
	// AdminOnly commands run only for chats listed in telegram.admin_ids.
	AdminOnly bool
	// Hidden commands work but stay out of the menu.
	Hidden  bool
	Aliases []string
}

// InMenu reports whether c belongs in the public command menu.
func (c Command) InMenu() bool {
	return !c.Hidden && !c.AdminOnly
}
