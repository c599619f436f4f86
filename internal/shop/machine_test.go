package shop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/ledger"
	"github.com/m3rciful/shopbot/internal/session"
)

const (
	buyer  int64 = 1001
	buyer2 int64 = 1002
	admin  int64 = 9001
)

type recorder struct {
	mu      sync.Mutex
	replies []Reply
	// orderIDs holds the order id of the send context of each reply.
	orderIDs []int64
	fail     bool
}

func (r *recorder) Send(ctx context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("queue full")
	}
	r.replies = append(r.replies, reply)
	r.orderIDs = append(r.orderIDs, logger.MetaFrom(ctx).OrderID)
	return nil
}

func (r *recorder) take() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.replies
	r.replies, r.orderIDs = nil, nil
	return out
}

func (r *recorder) last(t *testing.T) Reply {
	t.Helper()
	all := r.take()
	if len(all) == 0 {
		t.Fatal("no reply sent")
	}
	return all[len(all)-1]
}

type fixture struct {
	m        *Machine
	out      *recorder
	cat      *catalog.Catalog
	sessions *session.MemoryStore
	ledger   *ledger.Ledger
	persists int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.New(catalog.Document{
		Admins: []int64{admin},
		Cities: []string{"Moscow", "Kazan"},
		Districts: map[string][]string{
			"Moscow": {"Center", "North"},
			"Kazan":  {"Old Town"},
		},
		Products: map[string][]catalog.Product{
			"Moscow": {{Name: "Tea", Price: 300}, {Name: "Coffee", Price: 450}},
			"Kazan":  {{Name: "Coffee", Price: 400}},
		},
		PaymentMethods: []catalog.PaymentMethod{
			{Method: "Card", Details: "2200 0000"},
			{Method: "SBP", Details: "+7 900"},
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	f := &fixture{
		out:      &recorder{},
		cat:      cat,
		sessions: session.NewMemoryStore(0),
		ledger:   ledger.New(ledger.NewMemoryStore()),
	}
	f.m, err = New(Options{
		Catalog:  cat,
		Sessions: f.sessions,
		Ledger:   f.ledger,
		Sender:   f.out,
		Admins:   []int64{admin},
		Persist: func() error {
			f.persists++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	return f
}

func (f *fixture) text(t *testing.T, chatID int64, text string) Reply {
	t.Helper()
	if err := f.m.HandleText(context.Background(), chatID, text); err != nil {
		t.Fatalf("HandleText(%q): %v", text, err)
	}
	return f.out.last(t)
}

func (f *fixture) state(t *testing.T, chatID int64) session.State {
	t.Helper()
	s, ok, err := f.sessions.Get(context.Background(), chatID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		return session.StateNone
	}
	return s.State
}

func flat(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func (f *fixture) orderFlow(t *testing.T, chatID int64, city, district, product, method string) {
	t.Helper()
	if err := f.m.Start(context.Background(), chatID); err != nil {
		t.Fatal(err)
	}
	f.out.take()
	f.text(t, chatID, city)
	f.text(t, chatID, district)
	f.text(t, chatID, product)
	f.text(t, chatID, method)
	if got := f.state(t, chatID); got != session.StateConfirm {
		t.Fatalf("state before confirm = %s", got)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
}

func TestStartAlwaysResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orderFlow(t, buyer, "Moscow", "Center", "Tea", "Card")
	if err := f.m.Start(ctx, buyer); err != nil {
		t.Fatal(err)
	}
	r := f.out.last(t)
	if r.Text != textChooseCity {
		t.Fatalf("start reply = %q", r.Text)
	}
	if got := flat(r.Buttons); strings.Join(got, "|") != "Moscow|Kazan|"+BtnHome {
		t.Fatalf("start buttons = %v", got)
	}
	s, ok, _ := f.sessions.Get(ctx, buyer)
	if !ok || s.State != session.StateCity || s.City != "" || s.Product != nil {
		t.Fatalf("session after /start = %+v", s)
	}
}

func TestDistrictScenario(t *testing.T) {
	f := newFixture(t)
	if err := f.m.Start(context.Background(), buyer); err != nil {
		t.Fatal(err)
	}
	f.out.take()

	r := f.text(t, buyer, "Moscow")
	if r.Text != textChooseDistrict || strings.Join(flat(r.Buttons), "|") != "Center|North|"+BtnHome {
		t.Fatalf("district prompt = %+v", r)
	}

	r = f.text(t, buyer, "Mars")
	if r.Text != textDistrictNotFound || r.Buttons != nil {
		t.Fatalf("invalid district reply = %+v", r)
	}
	if got := f.state(t, buyer); got != session.StateDistrict {
		t.Fatalf("state after invalid district = %s", got)
	}

	r = f.text(t, buyer, "Center")
	if r.Text != textChooseProduct || strings.Join(flat(r.Buttons), "|") != "Tea|Coffee|"+BtnHome {
		t.Fatalf("product prompt = %+v", r)
	}
}

func TestInvalidInputLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		bad   string
		reply string
	}{
		{"city", nil, "moscow", textCityNotFound},
		{"district of another city", []string{"Moscow"}, "Old Town", textDistrictNotFound},
		{"product of another city", []string{"Kazan", "Old Town"}, "Tea", textProductNotFound},
		{"payment method", []string{"Moscow", "Center", "Tea"}, "Cash", textMethodNotFound},
		{"confirm", []string{"Moscow", "Center", "Tea", "Card"}, "yes", textUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if err := f.m.Start(ctx, buyer); err != nil {
				t.Fatal(err)
			}
			for _, step := range tt.steps {
				f.text(t, buyer, step)
			}
			before, _, _ := f.sessions.Get(ctx, buyer)

			if r := f.text(t, buyer, tt.bad); r.Text != tt.reply {
				t.Fatalf("reply = %q, want %q", r.Text, tt.reply)
			}
			after, _, _ := f.sessions.Get(ctx, buyer)
			if after.State != before.State || after.City != before.City || after.District != before.District ||
				after.PaymentMethod != before.PaymentMethod || (after.Product == nil) != (before.Product == nil) {
				t.Fatalf("session changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestSubmitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orderFlow(t, buyer, "Moscow", "Center", "Coffee", "SBP")

	if err := f.m.HandleText(ctx, buyer, BtnConfirm); err != nil {
		t.Fatal(err)
	}
	replies := f.out.take()
	if len(replies) != 3 {
		t.Fatalf("replies = %d, want buyer x2 + admin", len(replies))
	}
	placed := replies[0]
	if !strings.HasPrefix(placed.Text, "✅ Ваш заказ №1 подтверждён.") || !placed.Markdown {
		t.Fatalf("placed reply = %+v", placed)
	}
	if !strings.Contains(placed.Text, "`+7 900`") || !strings.Contains(placed.Text, "`SBP`") {
		t.Fatalf("payment details must use the selected method:\n%s", placed.Text)
	}
	if replies[1].Text != textAwaitingAdmin || flat(replies[1].Buttons)[0] != BtnHome {
		t.Fatalf("awaiting reply = %+v", replies[1])
	}
	if replies[2].ChatID != admin || !strings.Contains(replies[2].Text, "№1") {
		t.Fatalf("admin notice = %+v", replies[2])
	}

	if got := f.state(t, buyer); got != session.StateNone {
		t.Fatalf("session not cleared: %s", got)
	}
	orders, _ := f.ledger.ListAll(ctx)
	if len(orders) != 1 {
		t.Fatalf("orders = %d", len(orders))
	}
	o := orders[0]
	if o.ID != 1 || o.ChatID != buyer || o.Status != ledger.StatusPending || o.Product.Price != 450 ||
		o.City != "Moscow" || o.District != "Center" || o.PaymentMethod != "SBP" {
		t.Fatalf("order = %+v", o)
	}
}

func TestProductSnapshotSurvivesCatalogEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orderFlow(t, buyer, "Moscow", "Center", "Tea", "Card")

	if _, err := f.cat.DeleteProduct("Tea"); err != nil {
		t.Fatal(err)
	}
	if err := f.cat.AddProduct("Moscow", catalog.Product{Name: "Tea", Price: 999}); err != nil {
		t.Fatal(err)
	}
	f.text(t, buyer, BtnConfirm)

	o, err := f.ledger.FindByID(ctx, 1)
	if err != nil || o.Product.Price != 300 {
		t.Fatalf("order = %+v, %v; want snapshot price 300", o, err)
	}
}

func TestCancelAtConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orderFlow(t, buyer, "Moscow", "Center", "Tea", "Card")

	r := f.text(t, buyer, BtnCancel)
	if r.Text != textOrderCanceled {
		t.Fatalf("cancel reply = %q", r.Text)
	}
	if got := f.state(t, buyer); got != session.StateNone {
		t.Fatalf("state after cancel = %s", got)
	}
	if orders, _ := f.ledger.ListAll(ctx); len(orders) != 0 {
		t.Fatalf("cancel must not create orders: %+v", orders)
	}
}

func TestSequentialOrdersFromDifferentChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orderFlow(t, buyer, "Moscow", "Center", "Tea", "Card")
	f.text(t, buyer, BtnConfirm)
	f.orderFlow(t, buyer2, "Kazan", "Old Town", "Coffee", "Card")
	f.text(t, buyer2, BtnConfirm)

	orders, _ := f.ledger.ListAll(ctx)
	if len(orders) != 2 || orders[0].ChatID != buyer || orders[0].ID != 1 || orders[1].ChatID != buyer2 || orders[1].ID != 2 {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestHomeClearsSession(t *testing.T) {
	tests := []struct {
		chat int64
		want []string
	}{
		{buyer, []string{CmdStart}},
		{admin, []string{CmdStart, CmdAdmin}},
	}
	for _, tt := range tests {
		f := newFixture(t)
		if err := f.m.Start(context.Background(), tt.chat); err != nil {
			t.Fatal(err)
		}
		f.text(t, tt.chat, "Moscow")
		r := f.text(t, tt.chat, BtnHome)
		if r.Text != textMainMenu || strings.Join(flat(r.Buttons), "|") != strings.Join(tt.want, "|") {
			t.Fatalf("home reply for %d = %+v", tt.chat, r)
		}
		if got := f.state(t, tt.chat); got != session.StateNone {
			t.Fatalf("state after home = %s", got)
		}
	}
}

func TestIdleUnknownText(t *testing.T) {
	f := newFixture(t)
	if r := f.text(t, buyer, "hello"); r.Text != textUnknown {
		t.Fatalf("reply = %q", r.Text)
	}
	if r := f.text(t, buyer, BtnAdminOrders); r.Text != textUnknown {
		t.Fatalf("admin button from buyer = %q", r.Text)
	}
	if got := f.state(t, buyer); got != session.StateNone {
		t.Fatalf("buyer entered %s", got)
	}
}

func TestDeliveryFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.out.fail = true
	if err := f.m.Start(context.Background(), buyer); err != nil {
		t.Fatalf("delivery errors must not propagate: %v", err)
	}
	if got := f.state(t, buyer); got != session.StateCity {
		t.Fatalf("state = %s", got)
	}
}

func TestConcurrentChatsKeepSeparateSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := int64(0); i < 20; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			_ = f.m.Start(ctx, chat)
			_ = f.m.HandleText(ctx, chat, "Moscow")
			_ = f.m.HandleText(ctx, chat, "Center")
			_ = f.m.HandleText(ctx, chat, "Tea")
			_ = f.m.HandleText(ctx, chat, "Card")
			_ = f.m.HandleText(ctx, chat, BtnConfirm)
		}(100 + i)
	}
	wg.Wait()

	orders, _ := f.ledger.ListAll(ctx)
	if len(orders) != 20 {
		t.Fatalf("orders = %d, want 20", len(orders))
	}
	seen := map[int64]bool{}
	for i, o := range orders {
		if o.ID != int64(i+1) {
			t.Fatalf("order %d has id %d", i, o.ID)
		}
		if seen[o.ChatID] {
			t.Fatalf("chat %d ordered twice", o.ChatID)
		}
		seen[o.ChatID] = true
	}
}

type clearFailStore struct {
	*session.MemoryStore
}

func (s clearFailStore) Clear(context.Context, int64) error {
	return errors.New("store unavailable")
}

func TestIncompleteConfirmSessionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := clearFailStore{MemoryStore: f.sessions}
	m, err := New(Options{
		Catalog:  f.cat,
		Sessions: store,
		Ledger:   f.ledger,
		Sender:   f.out,
		Admins:   []int64{admin},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Put(ctx, session.Session{ChatID: buyer, State: session.StateConfirm, City: "Moscow"}); err != nil {
		t.Fatal(err)
	}

	err = m.HandleText(ctx, buyer, BtnConfirm)
	if err == nil || !strings.Contains(err.Error(), "incomplete session") {
		t.Fatalf("err = %v, want the incomplete session error", err)
	}
	if r := f.out.last(t); r.Text != textInternalError {
		t.Fatalf("reply = %q", r.Text)
	}
	if orders, _ := f.ledger.ListAll(ctx); len(orders) != 0 {
		t.Fatalf("orders = %d, want none", len(orders))
	}
}

func TestOrderRepliesCarryOrderID(t *testing.T) {
	f := newFixture(t)
	f.orderFlow(t, buyer, "Moscow", "Center", "Tea", "Card")
	f.out.take()
	if err := f.m.HandleText(context.Background(), buyer, BtnConfirm); err != nil {
		t.Fatal(err)
	}
	f.out.mu.Lock()
	ids := append([]int64(nil), f.out.orderIDs...)
	f.out.mu.Unlock()
	if len(ids) != 3 {
		t.Fatalf("replies = %d, want 3", len(ids))
	}
	for i, id := range ids {
		if id != 1 {
			t.Fatalf("reply %d sent for order %d, want 1", i, id)
		}
	}
	f.out.take()

	f.text(t, admin, BtnAdminConfirmPay)
	if err := f.m.HandleText(context.Background(), admin, "1"); err != nil {
		t.Fatal(err)
	}
	f.out.mu.Lock()
	defer f.out.mu.Unlock()
	for i, id := range f.out.orderIDs {
		if id != 1 {
			t.Fatalf("status reply %d sent for order %d, want 1", i, id)
		}
	}
}
