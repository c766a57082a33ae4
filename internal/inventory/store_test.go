package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)

// fakeDynamo is an in-memory table set that understands the expression
// shapes the store emits: equality filters, version-conditioned updates and
// attribute_not_exists puts. Writes are serialized so concurrent callers
// exercise the same race the real backend would.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	updateErrs []error // consumed per UpdateItem call before normal handling
	scanErrs   []error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func keyOf(item map[string]types.AttributeValue) string {
	for _, k := range []string{"id", "phone", "state_id"} {
		if v, ok := item[k].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
	}
	return ""
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(*in.TableName)
	key := keyOf(in.Item)
	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "attribute_not_exists") {
		if _, exists := t[key]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := f.table(*in.TableName)[keyOf(in.Key)]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	t := f.table(*in.TableName)
	key := keyOf(in.Key)
	item, exists := t[key]
	if !exists {
		item = map[string]types.AttributeValue{}
		for k, v := range in.Key {
			item[k] = v
		}
	}

	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "version = :v") {
		want := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberN).Value
		have, ok := item["version"].(*types.AttributeValueMemberN)
		if !ok || have.Value != want {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	updated := applyUpdate(item, *in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	t[key] = updated
	return &dynamodb.UpdateItemOutput{Attributes: updated}, nil
}

func applyUpdate(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	setPart := expr
	removePart := ""
	if idx := strings.Index(expr, "REMOVE"); idx >= 0 {
		setPart = expr[:idx]
		removePart = expr[idx+len("REMOVE"):]
	}
	setPart = strings.TrimPrefix(strings.TrimSpace(setPart), "SET ")
	for _, clause := range strings.Split(setPart, ",") {
		parts := strings.SplitN(clause, "=", 2)
		attr := strings.TrimSpace(parts[0])
		if real, ok := names[attr]; ok {
			attr = real
		}
		out[attr] = values[strings.TrimSpace(parts[1])]
	}
	for _, attr := range strings.Split(removePart, ",") {
		delete(out, strings.TrimSpace(attr))
	}
	return out
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scanErrs) > 0 {
		err := f.scanErrs[0]
		f.scanErrs = f.scanErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var items []map[string]types.AttributeValue
	for _, item := range f.table(*in.TableName) {
		if matchFilter(item, in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			items = append(items, item)
		}
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func matchFilter(item map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		op := "="
		if strings.Contains(clause, "<") {
			op = "<"
		}
		parts := strings.SplitN(clause, op, 2)
		attr := strings.TrimSpace(parts[0])
		if real, ok := names[attr]; ok {
			attr = real
		}
		want := values[strings.TrimSpace(parts[1])]
		have, ok := item[attr]
		if !ok {
			return false
		}
		switch op {
		case "=":
			ws, _ := want.(*types.AttributeValueMemberS)
			hs, _ := have.(*types.AttributeValueMemberS)
			if ws == nil || hs == nil || ws.Value != hs.Value {
				return false
			}
		case "<":
			wn := want.(*types.AttributeValueMemberN)
			hn, ok := have.(*types.AttributeValueMemberN)
			if !ok {
				return false
			}
			h, _ := strconv.ParseInt(hn.Value, 10, 64)
			w, _ := strconv.ParseInt(wn.Value, 10, 64)
			if h >= w {
				return false
			}
		}
	}
	return true
}

func seedSlot(t *testing.T, fake *fakeDynamo, slot Slot) {
	t.Helper()
	if slot.ID == "" {
		slot.ID = SlotID(slot.VendorID, slot.ResourceID, slot.Date, slot.StartTime, slot.DurationHours)
	}
	if slot.Version == 0 {
		slot.Version = 1
	}
	item, err := attributevalue.MarshalMap(&slot)
	require.NoError(t, err)
	fake.table("slots")[slot.ID] = item
}

func newTestStore(t *testing.T) (*Store, *fakeDynamo) {
	t.Helper()
	fake := newFakeDynamo()
	store := NewStore(fake, Tables{Vendors: "vendors", Slots: "slots"}, nil)
	store.sleep = func(context.Context, time.Duration) error { return nil }
	return store, fake
}

func seedVendor(t *testing.T, store *Store, v Vendor) {
	t.Helper()
	require.NoError(t, store.PutVendor(context.Background(), &v))
}

func padelVendor() Vendor {
	return Vendor{
		ID:           "ace_padel_dha",
		Name:         "Ace Padel",
		Category:     "padel",
		Area:         "DHA Phase 6",
		PricePerHour: 2250,
		OpenTime:     "08:00",
		CloseTime:    "23:00",
		Timezone:     "Asia/Karachi",
		Resources:    []string{"court_1", "court_2"},
	}
}

func TestListVendorsFilters(t *testing.T) {
	store, _ := newTestStore(t)
	seedVendor(t, store, padelVendor())
	seedVendor(t, store, Vendor{ID: "crick_a", Name: "Wicket Works", Category: "cricket", Area: "Gulberg"})
	seedVendor(t, store, Vendor{ID: "padel_b", Name: "Baseline Padel", Category: "padel", Area: "Clifton"})

	ctx := context.Background()

	all, err := store.ListVendors(ctx, VendorFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Ace Padel", all[0].Name, "sorted by name")

	padel, err := store.ListVendors(ctx, VendorFilter{ServiceType: "padel"})
	require.NoError(t, err)
	assert.Len(t, padel, 2)

	dha, err := store.ListVendors(ctx, VendorFilter{ServiceType: "padel", Area: "dha"})
	require.NoError(t, err)
	require.Len(t, dha, 1)
	assert.Equal(t, "ace_padel_dha", dha[0].ID)

	named, err := store.ListVendors(ctx, VendorFilter{NameContains: "baseline"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "padel_b", named[0].ID)
}

func TestFindSlotsExcludesCollisionsAndClosedHours(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())

	base := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", DurationHours: 1, Status: SlotAvailable, Price: 1800}

	free := base
	free.StartTime = "17:00"
	seedSlot(t, fake, free)

	// Booked 18:00 plus an available 18:00 on the same court: collision.
	booked := base
	booked.StartTime = "18:00"
	booked.Status = SlotBooked
	booked.BookedBy = "+92300other"
	seedSlot(t, fake, booked)

	shadowed := base
	shadowed.StartTime = "18:00"
	shadowed.ID = "shadowed"
	seedSlot(t, fake, shadowed)

	// Overlapping 2h block that crosses the booked 18:00 hour.
	overlapping := base
	overlapping.StartTime = "17:30"
	overlapping.DurationHours = 2
	seedSlot(t, fake, overlapping)

	// Same time, other court: no collision.
	otherCourt := base
	otherCourt.StartTime = "18:00"
	otherCourt.ResourceID = "court_2"
	seedSlot(t, fake, otherCourt)

	// Past closing.
	late := base
	late.StartTime = "22:30"
	seedSlot(t, fake, late)

	slots, err := store.FindSlots(context.Background(), "ace_padel_dha", "2025-12-14", "", 1, testNow)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "17:00", slots[0].StartTime)
	assert.Equal(t, "court_2", slots[1].ResourceID)

	exact, err := store.FindSlots(context.Background(), "ace_padel_dha", "2025-12-14", "17:00", 1, testNow)
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, free.ID, exact[0].ID)
}

func TestFindSlotsTreatsExpiredHoldAsAvailable(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())

	held := Slot{
		VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14",
		StartTime: "17:00", DurationHours: 1, Status: SlotHeld,
		HeldBy: "+923001111111", HeldUntil: testNow.Add(-time.Minute).Unix(),
	}
	seedSlot(t, fake, held)

	slots, err := store.FindSlots(context.Background(), "ace_padel_dha", "2025-12-14", "", 1, testNow)
	require.NoError(t, err)
	require.Len(t, slots, 1)
}

func TestReserveBooksAvailableSlot(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable, Price: 1800}
	seedSlot(t, fake, slot)
	slotID := SlotID(slot.VendorID, slot.ResourceID, slot.Date, slot.StartTime, slot.DurationHours)

	res, err := store.Reserve(context.Background(), slotID, "+923001234567", testNow)
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Booked)
	assert.Equal(t, SlotBooked, res.Booked.Status)
	assert.Equal(t, "+923001234567", res.Booked.BookedBy)
	assert.Equal(t, int64(2), res.Booked.Version)
}

func TestReserveFailureReasons(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())

	booked := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotBooked, BookedBy: "+92300other"}
	seedSlot(t, fake, booked)

	heldByOther := Slot{VendorID: "ace_padel_dha", ResourceID: "court_2", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotHeld, HeldBy: "+92300other", HeldUntil: testNow.Add(time.Minute).Unix()}
	seedSlot(t, fake, heldByOther)

	ctx := context.Background()

	res, err := store.Reserve(ctx, "missing", "+923001234567", testNow)
	assert.Error(t, err)
	assert.Equal(t, ReasonNotFound, res.Reason)

	res, err = store.Reserve(ctx, booked.SlotID(), "+923001234567", testNow)
	assert.Error(t, err)
	assert.Equal(t, ReasonAlreadyBooked, res.Reason)

	res, err = store.Reserve(ctx, heldByOther.SlotID(), "+923001234567", testNow)
	assert.Error(t, err)
	assert.Equal(t, ReasonAlreadyBooked, res.Reason)
}

func TestReserveRejectsOverlapWithCommittedSlot(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())

	booked := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "18:00", DurationHours: 1, Status: SlotBooked, BookedBy: "+92300other"}
	seedSlot(t, fake, booked)

	crossing := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:30", DurationHours: 2, Status: SlotAvailable}
	seedSlot(t, fake, crossing)

	res, err := store.Reserve(context.Background(), crossing.SlotID(), "+923001234567", testNow)
	assert.Error(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonOverlaps, res.Reason)
}

func TestReserveConcurrentRaceHasOneWinner(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)
	slotID := slot.SlotID()

	phones := []string{"+923001111111", "+923002222222"}
	results := make([]ReserveResult, len(phones))

	var start, done sync.WaitGroup
	start.Add(1)
	for i, phone := range phones {
		done.Add(1)
		go func(i int, phone string) {
			defer done.Done()
			start.Wait()
			results[i], _ = store.Reserve(context.Background(), slotID, phone, testNow)
		}(i, phone)
	}
	start.Done()
	done.Wait()

	winners := 0
	for _, res := range results {
		if res.OK {
			winners++
		} else {
			assert.Equal(t, ReasonAlreadyBooked, res.Reason)
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller may book the slot")

	final, err := store.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, final.Status)
}

func TestReserveRetriesTransientFailures(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)

	fake.updateErrs = []error{errors.New("throttled"), errors.New("throttled")}

	res, err := store.Reserve(context.Background(), slot.SlotID(), "+923001234567", testNow)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestReserveGivesUpAfterBackoffBudget(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)

	fake.updateErrs = []error{
		errors.New("throttled"), errors.New("throttled"),
		errors.New("throttled"), errors.New("throttled"),
	}

	res, err := store.Reserve(context.Background(), slot.SlotID(), "+923001234567", testNow)
	assert.Error(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonTransient, res.Reason)
}

func TestHoldLifecycle(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)
	slotID := slot.SlotID()
	ctx := context.Background()

	res, err := store.Hold(ctx, slotID, "+923001111111", 2*time.Minute, testNow)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, testNow.Add(2*time.Minute), res.HeldUntil)

	// Someone else cannot take it while the hold lives.
	other, err := store.Hold(ctx, slotID, "+923002222222", 2*time.Minute, testNow.Add(time.Minute))
	assert.Error(t, err)
	assert.Equal(t, ReasonAlreadyBooked, other.Reason)

	// The holder can extend and then book.
	again, err := store.Hold(ctx, slotID, "+923001111111", 2*time.Minute, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, again.OK)

	booked, err := store.Reserve(ctx, slotID, "+923001111111", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, booked.OK)
}

func TestHoldExpiryFreesSlotForOthers(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)
	ctx := context.Background()

	_, err := store.Hold(ctx, slot.SlotID(), "+923001111111", 2*time.Minute, testNow)
	require.NoError(t, err)

	after := testNow.Add(3 * time.Minute)
	res, err := store.Reserve(ctx, slot.SlotID(), "+923002222222", after)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "+923002222222", res.Booked.BookedBy)
}

func TestReleaseReturnsHeldSlot(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())
	slot := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotAvailable}
	seedSlot(t, fake, slot)
	ctx := context.Background()

	_, err := store.Hold(ctx, slot.SlotID(), "+923001111111", 2*time.Minute, testNow)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, slot.SlotID(), "+923001111111"))

	got, err := store.GetSlot(ctx, slot.SlotID())
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, got.Status)
	assert.Empty(t, got.HeldBy)

	// Releasing someone else's hold, or a missing slot, is a no-op.
	_, err = store.Hold(ctx, slot.SlotID(), "+923002222222", 2*time.Minute, testNow)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, slot.SlotID(), "+923001111111"))
	got, err = store.GetSlot(ctx, slot.SlotID())
	require.NoError(t, err)
	assert.Equal(t, SlotHeld, got.Status)
	require.NoError(t, store.Release(ctx, "missing", "+923001111111"))
}

func TestSweepExpiredHolds(t *testing.T) {
	store, fake := newTestStore(t)
	seedVendor(t, store, padelVendor())

	stale := Slot{VendorID: "ace_padel_dha", ResourceID: "court_1", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotHeld, HeldBy: "+92300a", HeldUntil: testNow.Add(-time.Minute).Unix()}
	fresh := Slot{VendorID: "ace_padel_dha", ResourceID: "court_2", Date: "2025-12-14", StartTime: "17:00", DurationHours: 1, Status: SlotHeld, HeldBy: "+92300b", HeldUntil: testNow.Add(time.Minute).Unix()}
	seedSlot(t, fake, stale)
	seedSlot(t, fake, fresh)

	released, err := store.SweepExpiredHolds(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := store.GetSlot(context.Background(), stale.SlotID())
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, got.Status)

	got, err = store.GetSlot(context.Background(), fresh.SlotID())
	require.NoError(t, err)
	assert.Equal(t, SlotHeld, got.Status)
}

func TestPutSlotRefusesDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)
	slot := &Slot{VendorID: "v", ResourceID: "r", Date: "2025-12-14", StartTime: "10:00", DurationHours: 1, Status: SlotAvailable}
	require.NoError(t, store.PutSlot(context.Background(), slot))
	dup := *slot
	assert.Error(t, store.PutSlot(context.Background(), &dup))
}

func TestLedgerPaymentsAndUsers(t *testing.T) {
	fake := newFakeDynamo()
	ledger := NewLedger(fake, LedgerTables{Payments: "payments", Users: "users"}, nil)
	ctx := context.Background()

	id, err := ledger.RecordPaymentDue(ctx, "+923001234567", "ace_padel_dha", "slot-1", 1800, testNow)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := ledger.VerifyAmount(ctx, id, 1800)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.VerifyAmount(ctx, id, 2250)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ledger.VerifyAmount(ctx, "missing", 1800)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	require.NoError(t, ledger.UpsertUser(ctx, "+923001234567", "Taha", testNow))
	require.NoError(t, ledger.UpsertUser(ctx, "+923001234567", "", testNow.Add(time.Minute)))

	item := fake.table("users")["+923001234567"]
	var user UserRecord
	require.NoError(t, attributevalue.UnmarshalMap(item, &user))
	assert.Equal(t, "Taha", user.Name, "blank name must not clobber a known one")
	assert.Equal(t, testNow.Add(time.Minute).Unix(), user.LastSeen)
}
