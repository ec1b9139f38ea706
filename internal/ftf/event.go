package ftf

import (
	"fmt"
	"strconv"
)

// EventType is the 4-bit event type carried in an Event record header.
type EventType uint8

const (
	EventInstant          EventType = 0
	EventCounter          EventType = 1
	EventDurationBegin    EventType = 2
	EventDurationEnd      EventType = 3
	EventDurationComplete EventType = 4
	EventAsyncBegin       EventType = 5
	EventAsyncInstant     EventType = 6
	EventAsyncEnd         EventType = 7
	EventFlowBegin        EventType = 8
	EventFlowStep         EventType = 9
	EventFlowEnd          EventType = 10
)

var eventTypeNames = [...]string{
	EventInstant:          "instant",
	EventCounter:          "counter",
	EventDurationBegin:    "duration-begin",
	EventDurationEnd:      "duration-end",
	EventDurationComplete: "duration-complete",
	EventAsyncBegin:       "async-begin",
	EventAsyncInstant:     "async-instant",
	EventAsyncEnd:         "async-end",
	EventFlowBegin:        "flow-begin",
	EventFlowStep:         "flow-step",
	EventFlowEnd:          "flow-end",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "event(" + strconv.Itoa(int(t)) + ")"
}

// Windowed reports whether events of this type are filtered by timestamp.
// Instant, counter and the three duration kinds are; every other type is
// handed to the caller's unknown-event policy.
func (t EventType) Windowed() bool {
	return t <= EventDurationComplete
}

// ThreadRef identifies the thread an event happened on. A zero Index means
// the koids are stored inline in the event.
type ThreadRef struct {
	Index       uint8
	ProcessKoid uint64
	ThreadKoid  uint64
}

// InlineThread returns a reference carrying the koids in the event itself.
func InlineThread(process, thread uint64) ThreadRef {
	return ThreadRef{ProcessKoid: process, ThreadKoid: thread}
}

// Event is a decoded Event record.
//
// Data holds the event-type-specific trailing words: the counter id for
// counters, the end timestamp for complete durations, the correlation id for
// async and flow events.
type Event struct {
	Type      EventType
	Timestamp uint64
	Thread    ThreadRef
	Category  StringRef
	Name      StringRef
	Args      []Argument
	Data      []uint64
}

// DecodeEvent decodes a complete Event record.
func DecodeEvent(rec []byte) (*Event, error) {
	e := &Event{}
	if err := e.Decode(rec); err != nil {
		return nil, err
	}
	return e, nil
}

// Decode decodes rec into e, reusing e's slices.
func (e *Event) Decode(rec []byte) error {
	d, err := newDecoder(rec, RecordEvent)
	if err != nil {
		return err
	}
	h := d.h
	*e = Event{
		Type:   h.EventType(),
		Thread: ThreadRef{Index: h.ThreadRef()},
		Args:   e.Args[:0],
		Data:   e.Data[:0],
	}
	if e.Timestamp, err = d.word(); err != nil {
		return err
	}
	if e.Thread.Index == 0 {
		if e.Thread.ProcessKoid, err = d.word(); err != nil {
			return err
		}
		if e.Thread.ThreadKoid, err = d.word(); err != nil {
			return err
		}
	}
	if e.Category, err = d.stringRef(h.CategoryRef()); err != nil {
		return err
	}
	if e.Name, err = d.stringRef(h.NameRef()); err != nil {
		return err
	}
	for i := 0; i < h.ArgCount(); i++ {
		a, err := decodeArg(d)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		e.Args = append(e.Args, a)
	}
	for d.remaining() > 0 {
		w, err := d.word()
		if err != nil {
			return err
		}
		e.Data = append(e.Data, w)
	}
	return nil
}

// AppendIndexedRefs appends the string table indices the event refers to, in
// encounter order: name, category, then each argument's name and string
// value. Duplicates are kept.
func (e *Event) AppendIndexedRefs(dst []uint16) []uint16 {
	add := func(r StringRef) {
		if r.IsIndexed() {
			dst = append(dst, r.Index)
		}
	}
	add(e.Name)
	add(e.Category)
	for i := range e.Args {
		add(e.Args[i].Name)
		if e.Args[i].Type == ArgString {
			add(e.Args[i].Str)
		}
	}
	return dst
}

// CounterID returns the counter id of a counter event.
func (e *Event) CounterID() (uint64, bool) {
	if e.Type != EventCounter || len(e.Data) == 0 {
		return 0, false
	}
	return e.Data[0], true
}

// EndTimestamp returns the end of a complete duration event.
func (e *Event) EndTimestamp() (uint64, bool) {
	if e.Type != EventDurationComplete || len(e.Data) == 0 {
		return 0, false
	}
	return e.Data[0], true
}

// AppendTo appends the encoded record to dst.
func (e *Event) AppendTo(dst []byte) ([]byte, error) {
	if len(e.Args) > 15 {
		return dst, fmt.Errorf("%w: %d arguments", ErrMalformed, len(e.Args))
	}
	size := 2 + e.Category.words() + e.Name.words() + len(e.Data)
	if e.Thread.Index == 0 {
		size += 2
	}
	for i := range e.Args {
		size += e.Args[i].sizeWords()
	}
	if size > 0xFFF {
		return dst, fmt.Errorf("%w: event of %d words", ErrMalformed, size)
	}
	h := makeHeader(RecordEvent, size) |
		Header(e.Type&0xF)<<16 |
		Header(len(e.Args))<<20 |
		Header(e.Thread.Index)<<24 |
		Header(e.Category.field())<<32 |
		Header(e.Name.field())<<48

	enc := encoder{buf: dst}
	enc.word(uint64(h))
	enc.word(e.Timestamp)
	if e.Thread.Index == 0 {
		enc.word(e.Thread.ProcessKoid)
		enc.word(e.Thread.ThreadKoid)
	}
	enc.stringRef(e.Category)
	enc.stringRef(e.Name)
	for i := range e.Args {
		e.Args[i].encode(&enc)
	}
	for _, w := range e.Data {
		enc.word(w)
	}
	return enc.buf, nil
}

// NewInstant builds an instant event.
func NewInstant(ts uint64, th ThreadRef, category, name StringRef, args ...Argument) *Event {
	return &Event{Type: EventInstant, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args}
}

func NewCounter(ts uint64, th ThreadRef, category, name StringRef, counterID uint64, args ...Argument) *Event {
	return &Event{Type: EventCounter, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args, Data: []uint64{counterID}}
}

func NewDurationBegin(ts uint64, th ThreadRef, category, name StringRef, args ...Argument) *Event {
	return &Event{Type: EventDurationBegin, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args}
}

func NewDurationEnd(ts uint64, th ThreadRef, category, name StringRef, args ...Argument) *Event {
	return &Event{Type: EventDurationEnd, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args}
}

func NewDurationComplete(ts uint64, th ThreadRef, category, name StringRef, endTs uint64, args ...Argument) *Event {
	return &Event{Type: EventDurationComplete, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args, Data: []uint64{endTs}}
}

// NewCorrelated builds an async or flow event carrying a correlation id.
func NewCorrelated(t EventType, ts uint64, th ThreadRef, category, name StringRef, id uint64, args ...Argument) *Event {
	return &Event{Type: t, Timestamp: ts, Thread: th, Category: category, Name: name, Args: args, Data: []uint64{id}}
}
