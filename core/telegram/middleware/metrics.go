package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const countsKey = "shop.replies"

// replyCount tallies the replies sent while handling one update.
type replyCount struct {
	messages int
	keyboard bool
}

func countsOf(c tele.Context) *replyCount {
	rc, _ := c.Get(countsKey).(*replyCount)
	return rc
}

// countingContext counts the replies a handler sends through its context.
type countingContext struct {
	tele.Context
	rc *replyCount
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.rc.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			c.rc.keyboard = c.rc.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			c.rc.keyboard = c.rc.keyboard || v != nil
		}
	}
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

// ReplyCounterMiddleware counts the replies of each update for the handler
// summary line.
func ReplyCounterMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		rc := countsOf(c)
		if rc == nil {
			rc = &replyCount{}
			c.Set(countsKey, rc)
		}
		return next(countingContext{Context: c, rc: rc})
	}
}

// AddCounters records replies delivered outside tele.Context, such as
// through the sender queue.
func AddCounters(c tele.Context, messages int, keyboard bool) {
	if c == nil || messages <= 0 {
		return
	}
	rc := countsOf(c)
	if rc == nil {
		rc = &replyCount{}
		c.Set(countsKey, rc)
	}
	rc.messages += messages
	rc.keyboard = rc.keyboard || keyboard
}

// GetCounters returns the reply count of c and whether any reply carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	rc := countsOf(c)
	if rc == nil {
		return 0, false
	}
	return rc.messages, rc.keyboard
}
