package server

import (
	"log"
	"sync"
	"time"

	"kvstore/internal/protocol"
	"kvstore/internal/store"
)

// defaultLockTimeout bounds every map call a command triggers, per the
// spec's default 500 ms lock timeout.
const defaultLockTimeout = 500 * time.Millisecond

// defaultReportInterval is how often the processor logs a performance
// report and flushes the store, mirroring the teacher's periodic
// cleanupExpiredKeys ticker.
const defaultReportInterval = 60 * time.Second

// Processor classifies requests, dispatches them to the persistent map,
// maps storage outcomes to ResultCodes, and maintains operation counters.
// A single Processor instance is shared across every server session; all
// counter mutation happens on its own serialization goroutine, so callers
// never need to lock around ProcessCommand.
type Processor struct {
	store *store.Map

	lockTimeout    time.Duration
	reportInterval time.Duration

	commands chan processRequest
	stop     chan struct{}
	wg       sync.WaitGroup

	counters map[protocol.ResultCode]uint32
}

type processRequest struct {
	cmd      protocol.CommandMessage
	callback func(protocol.ResultMessage)
}

// NewProcessor builds a Processor bound to store and starts its
// serialization goroutine and periodic report timer. lockTimeout bounds
// every store call a command triggers; reportInterval controls the
// periodic counters report and flush.
func NewProcessor(s *store.Map, lockTimeout, reportInterval time.Duration) *Processor {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	if reportInterval <= 0 {
		reportInterval = defaultReportInterval
	}
	p := &Processor{
		store:          s,
		lockTimeout:    lockTimeout,
		reportInterval: reportInterval,
		commands:       make(chan processRequest, 256),
		stop:           make(chan struct{}),
		counters:       make(map[protocol.ResultCode]uint32),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// ProcessCommand validates and dispatches cmd, invoking callback exactly
// once with the resulting ResultMessage. Safe to call concurrently from
// many server sessions; all processing is serialized internally.
func (p *Processor) ProcessCommand(cmd protocol.CommandMessage, callback func(protocol.ResultMessage)) {
	p.commands <- processRequest{cmd: cmd, callback: callback}
}

// Stop halts the report timer and serialization goroutine, flushing the
// store one final time.
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-p.commands:
			result := p.handle(req.cmd)
			req.callback(result)
		case <-ticker.C:
			p.report()
		case <-p.stop:
			// Drain whatever is already queued so in-flight sessions get a
			// reply instead of hanging, then do a final flush.
			for {
				select {
				case req := <-p.commands:
					req.callback(p.handle(req.cmd))
				default:
					if err := p.store.Flush(p.lockTimeout); err != nil {
						log.Printf("processor: final flush failed: %v", err)
					}
					return
				}
			}
		}
	}
}

// handle runs on the serialization goroutine: input validation, dispatch,
// counter increment, and (on allocator exhaustion) grow-then-retry-once.
func (p *Processor) handle(cmd protocol.CommandMessage) protocol.ResultMessage {
	if code, ok := p.validate(cmd); !ok {
		return p.result(cmd.ID, code, "")
	}

	code, value := p.dispatch(cmd)
	p.counters[code]++
	return p.result(cmd.ID, code, value)
}

func (p *Processor) validate(cmd protocol.CommandMessage) (protocol.ResultCode, bool) {
	if cmd.Key.String() == "" {
		return protocol.ResultWrongCommandFormat, false
	}
	switch cmd.Type {
	case protocol.CommandGet, protocol.CommandDelete:
		if cmd.Value.String() != "" {
			return protocol.ResultWrongCommandFormat, false
		}
	case protocol.CommandInsert, protocol.CommandUpdate:
		// any value, including empty, is fine
	default:
		return protocol.ResultUnknownCommand, false
	}
	return 0, true
}

func (p *Processor) dispatch(cmd protocol.CommandMessage) (protocol.ResultCode, string) {
	key := cmd.Key.String()
	value := cmd.Value.String()

	switch cmd.Type {
	case protocol.CommandInsert:
		err := p.store.Insert(key, value, p.lockTimeout)
		if err == store.ErrOutOfSegment {
			err = p.growAndRetry(func() error { return p.store.Insert(key, value, p.lockTimeout) })
		}
		if err != nil {
			return protocol.ResultInsertFailed, ""
		}
		return protocol.ResultInsertSuccess, ""

	case protocol.CommandUpdate:
		err := p.store.Update(key, value, p.lockTimeout)
		if err == store.ErrOutOfSegment {
			err = p.growAndRetry(func() error { return p.store.Update(key, value, p.lockTimeout) })
		}
		if err != nil {
			return protocol.ResultUpdateFailed, ""
		}
		return protocol.ResultUpdateSuccess, ""

	case protocol.CommandGet:
		v, err := p.store.Get(key, p.lockTimeout)
		if err != nil {
			return protocol.ResultGetFailed, ""
		}
		return protocol.ResultGetSuccess, v

	case protocol.CommandDelete:
		err := p.store.Delete(key, p.lockTimeout)
		if err != nil {
			return protocol.ResultDeleteFailed, ""
		}
		return protocol.ResultDeleteSuccess, ""
	}

	return protocol.ResultUnknownCommand, ""
}

// growAndRetry grows the segment once and retries op exactly once, per the
// grow-then-retry-once contract in §4.2/§7.
func (p *Processor) growAndRetry(op func() error) error {
	if err := p.store.Grow(); err != nil {
		log.Printf("processor: grow failed: %v", err)
		return err
	}
	return op()
}

func (p *Processor) result(id protocol.CommandID, code protocol.ResultCode, value string) protocol.ResultMessage {
	res, err := protocol.NewResultMessage(id, code, value)
	if err != nil {
		// value came from the store itself and can only exceed MaxValueSize
		// if an Insert/Update upstream should have already rejected it;
		// fail safe rather than panic.
		log.Printf("processor: result value exceeds limit: %v", err)
		res, _ = protocol.NewResultMessage(id, code, "")
	}
	return res
}

func (p *Processor) report() {
	stat, err := p.store.Stat(p.lockTimeout)
	if err != nil {
		log.Printf("processor: stat failed: %v", err)
		return
	}
	log.Printf("processor: report counters=%v segment_size=%d free_bytes=%d records=%d",
		p.counters, stat.SegmentSize, stat.FreeBytes, stat.RecordCount)
	if err := p.store.Flush(p.lockTimeout); err != nil {
		log.Printf("processor: periodic flush failed: %v", err)
	}
}
