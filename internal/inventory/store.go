package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/taha00000/book-for-me/pkg/logging"
)

// ErrSlotNotFound indicates the requested slot id does not exist.
var ErrSlotNotFound = errors.New("inventory: slot not found")

// ErrVendorNotFound indicates the requested vendor id does not exist.
var ErrVendorNotFound = errors.New("inventory: vendor not found")

// transientBackoff is the retry schedule for transient backend failures.
var transientBackoff = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Tables names the collections the store works against.
type Tables struct {
	Vendors string
	Slots   string
}

// Store is the read/write facade over the document database for vendors and
// slots. Slot writes are serializable per slot via conditional commits on the
// version attribute.
type Store struct {
	client dynamoAPI
	tables Tables
	logger *logging.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tables Tables, logger *logging.Logger) *Store {
	if client == nil {
		panic("inventory: dynamodb client cannot be nil")
	}
	if tables.Vendors == "" || tables.Slots == "" {
		panic("inventory: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client: client,
		tables: tables,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListVendors returns vendors matching the filter, sorted by name.
func (s *Store) ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Vendors),
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: failed to list vendors: %w", err)
	}

	var vendors []Vendor
	for _, item := range out.Items {
		var v Vendor
		if err := attributevalue.UnmarshalMap(item, &v); err != nil {
			s.logger.Warn("skipping undecodable vendor document", "error", err)
			continue
		}
		if !matchVendor(&v, filter) {
			continue
		}
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].Name < vendors[j].Name })
	return vendors, nil
}

func matchVendor(v *Vendor, f VendorFilter) bool {
	if f.ServiceType != "" && !strings.EqualFold(v.Category, f.ServiceType) {
		return false
	}
	if f.Area != "" && !strings.Contains(strings.ToLower(v.Area), strings.ToLower(f.Area)) {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(v.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// GetVendor fetches a vendor by id.
func (s *Store) GetVendor(ctx context.Context, vendorID string) (*Vendor, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Vendors),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: vendorID}},
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: failed to fetch vendor %s: %w", vendorID, err)
	}
	if out.Item == nil {
		return nil, ErrVendorNotFound
	}
	var v Vendor
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("inventory: failed to decode vendor: %w", err)
	}
	return &v, nil
}

// PutVendor upserts a vendor document. Used by seeding.
func (s *Store) PutVendor(ctx context.Context, v *Vendor) error {
	v.Version++
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("inventory: failed to marshal vendor: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Vendors),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("inventory: failed to persist vendor: %w", err)
	}
	return nil
}

// PutSlot inserts a slot document, refusing to overwrite an existing id.
func (s *Store) PutSlot(ctx context.Context, slot *Slot) error {
	if slot.ID == "" {
		slot.ID = SlotID(slot.VendorID, slot.ResourceID, slot.Date, slot.StartTime, slot.DurationHours)
	}
	if slot.Version == 0 {
		slot.Version = 1
	}
	item, err := attributevalue.MarshalMap(slot)
	if err != nil {
		return fmt.Errorf("inventory: failed to marshal slot: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Slots),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	}); err != nil {
		return fmt.Errorf("inventory: failed to persist slot: %w", err)
	}
	return nil
}

// GetSlot fetches a slot by id with a consistent read.
func (s *Store) GetSlot(ctx context.Context, slotID string) (*Slot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Slots),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: slotID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: failed to fetch slot %s: %w", slotID, err)
	}
	if out.Item == nil {
		return nil, ErrSlotNotFound
	}
	var slot Slot
	if err := attributevalue.UnmarshalMap(out.Item, &slot); err != nil {
		return nil, fmt.Errorf("inventory: failed to decode slot: %w", err)
	}
	return &slot, nil
}

// FindSlots lists available slots for (vendor, date, duration). When
// startTime is non-empty only slots starting exactly then are returned;
// otherwise all candidate starts on that date, earliest first. A slot
// qualifies when it fits the vendor's operating hours and does not collide
// with a booked or unexpired-held slot on the same resource.
func (s *Store) FindSlots(ctx context.Context, vendorID, date, startTime string, durationHours float64, now time.Time) ([]Slot, error) {
	vendor, err := s.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	all, err := s.slotsForDate(ctx, vendorID, date)
	if err != nil {
		return nil, err
	}

	// Busy intervals per resource from committed slots.
	busy := make(map[string][][2]int)
	for i := range all {
		slot := &all[i]
		if slot.Blocks(now) {
			start, end := slot.Interval()
			busy[slot.ResourceID] = append(busy[slot.ResourceID], [2]int{start, end})
		}
	}

	var matches []Slot
	for i := range all {
		slot := all[i]
		if slot.EffectiveStatus(now) != SlotAvailable {
			continue
		}
		if slot.DurationHours != durationHours {
			continue
		}
		if startTime != "" && slot.StartTime != startTime {
			continue
		}
		start, end := slot.Interval()
		if start < 0 || !withinHours(vendor, start, end) {
			continue
		}
		collides := false
		for _, b := range busy[slot.ResourceID] {
			if overlaps(start, end, b[0], b[1]) {
				collides = true
				break
			}
		}
		if collides {
			continue
		}
		matches = append(matches, slot)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartTime != matches[j].StartTime {
			return matches[i].StartTime < matches[j].StartTime
		}
		return matches[i].ResourceID < matches[j].ResourceID
	})
	return matches, nil
}

// ListSlots returns every slot document for (vendor, date) regardless of
// status, sorted by start time. Used for operational inspection.
func (s *Store) ListSlots(ctx context.Context, vendorID, date string) ([]Slot, error) {
	slots, err := s.slotsForDate(ctx, vendorID, date)
	if err != nil {
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime != slots[j].StartTime {
			return slots[i].StartTime < slots[j].StartTime
		}
		return slots[i].ResourceID < slots[j].ResourceID
	})
	return slots, nil
}

func (s *Store) slotsForDate(ctx context.Context, vendorID, date string) ([]Slot, error) {
	var slots []Slot
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tables.Slots),
			FilterExpression: aws.String("vendor_id = :v AND slot_date = :d"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: vendorID},
				":d": &types.AttributeValueMemberS{Value: date},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("inventory: failed to scan slots: %w", err)
		}
		for _, item := range out.Items {
			var slot Slot
			if err := attributevalue.UnmarshalMap(item, &slot); err != nil {
				s.logger.Warn("skipping undecodable slot document", "error", err)
				continue
			}
			slots = append(slots, slot)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return slots, nil
}

// Reserve performs the atomic read-modify-write that books a slot. The
// commit is conditional on the version read; a lost race re-reads once and
// reports already_booked. Transient backend failures retry up to three times
// with backoff before giving up.
func (s *Store) Reserve(ctx context.Context, slotID, userPhone string, now time.Time) (ReserveResult, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := s.reserveOnce(ctx, slotID, userPhone, now)
		if err == nil {
			return result, nil
		}
		if result.Reason != ReasonTransient || attempt >= len(transientBackoff) {
			return result, err
		}
		lastErr = err
		s.logger.Warn("transient reserve failure, retrying",
			"slot_id", slotID,
			"attempt", attempt+1,
			"error", err.Error(),
		)
		if sleepErr := s.sleep(ctx, transientBackoff[attempt]); sleepErr != nil {
			return ReserveResult{Reason: ReasonTransient}, lastErr
		}
	}
}

func (s *Store) reserveOnce(ctx context.Context, slotID, userPhone string, now time.Time) (ReserveResult, error) {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return ReserveResult{Reason: ReasonNotFound}, err
		}
		return ReserveResult{Reason: ReasonTransient}, err
	}

	switch slot.EffectiveStatus(now) {
	case SlotAvailable:
		// Free to book; an expired hold no longer protects anyone.
	case SlotHeld:
		if slot.HeldBy != userPhone {
			return ReserveResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s held by another user", slotID)
		}
	default:
		return ReserveResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s is %s", slotID, slot.Status)
	}

	if err := s.checkOverlap(ctx, slot, now); err != nil {
		return ReserveResult{Reason: ReasonOverlaps}, err
	}

	updated, err := s.conditionalUpdate(ctx, slot, map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(SlotBooked)},
		":by":     &types.AttributeValueMemberS{Value: userPhone},
	}, "SET #status = :status, booked_by = :by, version = :next REMOVE held_by, held_until")
	if err != nil {
		if isConditionalFailure(err) {
			// Lost the race: someone committed between our read and write.
			current, readErr := s.GetSlot(ctx, slotID)
			if readErr == nil && current.EffectiveStatus(now) == SlotAvailable {
				return ReserveResult{Reason: ReasonTransient}, fmt.Errorf("inventory: reserve conflict on slot %s: %w", slotID, err)
			}
			return ReserveResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s taken: %w", slotID, err)
		}
		return ReserveResult{Reason: ReasonTransient}, fmt.Errorf("inventory: reserve write failed: %w", err)
	}
	return ReserveResult{OK: true, Booked: updated}, nil
}

// checkOverlap rejects a commit that would collide with a booked or
// unexpired-held slot on the same resource.
func (s *Store) checkOverlap(ctx context.Context, slot *Slot, now time.Time) error {
	siblings, err := s.slotsForDate(ctx, slot.VendorID, slot.Date)
	if err != nil {
		return err
	}
	start, end := slot.Interval()
	for i := range siblings {
		other := &siblings[i]
		if other.ID == slot.ID || other.ResourceID != slot.ResourceID {
			continue
		}
		if !other.Blocks(now) {
			continue
		}
		oStart, oEnd := other.Interval()
		if overlaps(start, end, oStart, oEnd) {
			return fmt.Errorf("inventory: slot %s overlaps committed slot %s", slot.ID, other.ID)
		}
	}
	return nil
}

// Hold transitions available → held for ttl, protecting the slot while the
// user confirms. Re-holding by the same user extends the deadline.
func (s *Store) Hold(ctx context.Context, slotID, userPhone string, ttl time.Duration, now time.Time) (HoldResult, error) {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return HoldResult{Reason: ReasonNotFound}, err
		}
		return HoldResult{Reason: ReasonTransient}, err
	}

	switch slot.EffectiveStatus(now) {
	case SlotAvailable:
	case SlotHeld:
		if slot.HeldBy != userPhone {
			return HoldResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s held by another user", slotID)
		}
	default:
		return HoldResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s is %s", slotID, slot.Status)
	}

	heldUntil := now.Add(ttl)
	_, err = s.conditionalUpdate(ctx, slot, map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(SlotHeld)},
		":by":     &types.AttributeValueMemberS{Value: userPhone},
		":until":  &types.AttributeValueMemberN{Value: strconv.FormatInt(heldUntil.Unix(), 10)},
	}, "SET #status = :status, held_by = :by, held_until = :until, version = :next")
	if err != nil {
		if isConditionalFailure(err) {
			return HoldResult{Reason: ReasonAlreadyBooked}, fmt.Errorf("inventory: slot %s taken: %w", slotID, err)
		}
		return HoldResult{Reason: ReasonTransient}, fmt.Errorf("inventory: hold write failed: %w", err)
	}
	return HoldResult{OK: true, HeldUntil: heldUntil}, nil
}

// Release returns a slot held by userPhone to available. Releasing a slot
// the user does not hold is a no-op.
func (s *Store) Release(ctx context.Context, slotID, userPhone string) error {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil
		}
		return err
	}
	if slot.Status != SlotHeld || slot.HeldBy != userPhone {
		return nil
	}

	_, err = s.conditionalUpdate(ctx, slot, map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(SlotAvailable)},
	}, "SET #status = :status, version = :next REMOVE held_by, held_until")
	if err != nil && !isConditionalFailure(err) {
		return fmt.Errorf("inventory: release write failed: %w", err)
	}
	return nil
}

// SweepExpiredHolds flips stale holds back to available and returns how many
// it released. Readers already treat expired holds as available; this keeps
// the documents tidy.
func (s *Store) SweepExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tables.Slots),
		FilterExpression: aws.String("#status = :held AND held_until < :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":held": &types.AttributeValueMemberS{Value: string(SlotHeld)},
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("inventory: failed to scan expired holds: %w", err)
	}

	released := 0
	for _, item := range out.Items {
		var slot Slot
		if err := attributevalue.UnmarshalMap(item, &slot); err != nil {
			continue
		}
		if _, err := s.conditionalUpdate(ctx, &slot, map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(SlotAvailable)},
		}, "SET #status = :status, version = :next REMOVE held_by, held_until"); err != nil {
			// The slot changed under us; whoever changed it owns its state now.
			continue
		}
		released++
	}
	return released, nil
}

// conditionalUpdate commits a slot mutation predicated on the version the
// caller read, bumping version. values must not define :v or :next.
func (s *Store) conditionalUpdate(ctx context.Context, slot *Slot, values map[string]types.AttributeValue, expression string) (*Slot, error) {
	values[":v"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(slot.Version, 10)}
	values[":next"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(slot.Version+1, 10)}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Slots),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: slot.ID}},
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("version = :v"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}

	var updated Slot
	if out.Attributes != nil {
		if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
			return nil, fmt.Errorf("inventory: failed to decode updated slot: %w", err)
		}
	}
	return &updated, nil
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
