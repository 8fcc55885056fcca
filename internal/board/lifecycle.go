package board

import (
	"fmt"
	"sync"
)

// Boot finalizes the memory map, registers, initializes and resets every
// device, then runs each Runnable device's Boot loop on its own goroutine
// until every one of them returns. It blocks until shutdown.
//
// Boot may only be called once per Motherboard; call Reboot to run again.
func (mb *Motherboard) Boot() error {
	mb.mu.Lock()

	if mb.mapped {
		mb.mu.Unlock()
		return ErrAlreadyBooted
	}

	mb.memMap = finalizeMemoryMap(mb.slots)
	mb.mapped = true

	slots := append([]*slot(nil), mb.slots...)
	mb.mu.Unlock()

	mb.log.Info("board: boot: memory map finalized", "regions", len(mb.memMap.regions))

	if err := mb.registerAll(slots); err != nil {
		return err
	}

	if err := mb.initAll(slots); err != nil {
		return err
	}

	if err := mb.resetAll(slots); err != nil {
		return err
	}

	return mb.runAll(slots)
}

func (mb *Motherboard) registerAll(slots []*slot) error {
	for _, s := range slots {
		if r, ok := s.device.(Registrar); ok {
			if err := r.RegisterMotherboard(mb, mb); err != nil {
				return fmt.Errorf("board: register %s(id=%d): %w", s.device.DeviceType(), s.deviceID, err)
			}
		}
	}

	return nil
}

// initAll runs Init on every device. Per spec, if any Init fails, boot
// aborts and Cleanup is called on every device already initialized, in
// reverse order, before the error is returned.
func (mb *Motherboard) initAll(slots []*slot) error {
	done := make([]*slot, 0, len(slots))

	for _, s := range slots {
		if i, ok := s.device.(Initializer); ok {
			if err := i.Init(); err != nil {
				mb.log.Error("board: init failed", "device", s.device.DeviceType(), "id", s.deviceID, "err", err)
				mb.cleanupReverse(done)

				return fmt.Errorf("%w: %s(id=%d): %w", ErrInitFailed, s.device.DeviceType(), s.deviceID, err)
			}
		}

		done = append(done, s)
	}

	return nil
}

// resetAll runs Reset on every device, with the same abort-and-unwind policy
// as initAll.
func (mb *Motherboard) resetAll(slots []*slot) error {
	done := make([]*slot, 0, len(slots))

	for _, s := range slots {
		if r, ok := s.device.(Resetter); ok {
			if err := r.Reset(); err != nil {
				mb.log.Error("board: reset failed", "device", s.device.DeviceType(), "id", s.deviceID, "err", err)
				mb.cleanupReverse(done)

				return fmt.Errorf("%w: %s(id=%d): %w", ErrResetFailed, s.device.DeviceType(), s.deviceID, err)
			}
		}

		done = append(done, s)
	}

	return nil
}

func (mb *Motherboard) cleanupReverse(slots []*slot) {
	for i := len(slots) - 1; i >= 0; i-- {
		if c, ok := slots[i].device.(Cleaner); ok {
			if err := c.Cleanup(); err != nil {
				mb.log.Warn("board: cleanup error during unwind", "device", slots[i].device.DeviceType(), "err", err)
			}
		}
	}
}

// runAll spawns each Runnable device's Boot loop and waits for all of them
// to return, then runs Cleanup on every device in insertion order.
func (mb *Motherboard) runAll(slots []*slot) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, s := range slots {
		r, ok := s.device.(Runnable)
		if !ok {
			continue
		}

		wg.Add(1)

		go func(s *slot, r Runnable) {
			defer wg.Done()

			mb.log.Debug("board: device boot starting", "device", s.device.DeviceType(), "id", s.deviceID)

			if err := r.Boot(); err != nil {
				mb.log.Error("board: device boot returned error", "device", s.device.DeviceType(), "id", s.deviceID, "err", err)

				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("board: boot %s(id=%d): %w", s.device.DeviceType(), s.deviceID, err)
				}
				mu.Unlock()
			}
		}(s, r)
	}

	wg.Wait()
	mb.log.Info("board: all device boot loops returned")

	mb.cleanupReverse(reverseOf(slots))

	return firstErr
}

func reverseOf(slots []*slot) []*slot {
	out := make([]*slot, len(slots))

	for i, s := range slots {
		out[len(slots)-1-i] = s
	}

	return out
}

// Halt is advisory: it calls Halt on every Runnable device and relies on
// each device's Boot loop to return promptly. There is no forced
// termination; a device that never returns from Boot will make Boot hang.
func (mb *Motherboard) Halt() error {
	mb.mu.RLock()
	slots := append([]*slot(nil), mb.slots...)
	mb.mu.RUnlock()

	var firstErr error

	for _, s := range slots {
		if r, ok := s.device.(Runnable); ok {
			if err := r.Halt(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("board: halt %s(id=%d): %w", s.device.DeviceType(), s.deviceID, err)
			}
		}
	}

	return firstErr
}

// Reboot halts the board, then resets and boots every device again without
// destroying the slot table or re-finalizing the memory map.
func (mb *Motherboard) Reboot() error {
	if err := mb.Halt(); err != nil {
		mb.log.Warn("board: reboot: halt returned error", "err", err)
	}

	mb.mu.RLock()
	slots := append([]*slot(nil), mb.slots...)
	mb.mu.RUnlock()

	if err := mb.resetAll(slots); err != nil {
		return err
	}

	return mb.runAll(slots)
}
