//go:build cortexm

package main

import (
	"errors"
	"runtime/volatile"
	"unsafe"
)

// ARMv6-M / ARMv7-M system timer and the SCB registers that carry its
// pending bit and priority
const (
	sysTickBase = 0xE000E010
	sysTickCSR  = sysTickBase + 0x00 // control and status
	sysTickRVR  = sysTickBase + 0x04 // reload value
	sysTickCVR  = sysTickBase + 0x08 // current value

	scbICSR  = 0xE000ED04
	scbSHPR3 = 0xE000ED20

	csrEnable    = 1 << 0
	csrTickInt   = 1 << 1
	csrClkSource = 1 << 2 // processor clock

	icsrPendSTClr = 1 << 25
	icsrPendSTSet = 1 << 26

	shpr3SysTickPos = 24

	sysTickMask = 0x00FFFFFF
)

var (
	regCSR   = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickCSR)))
	regRVR   = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickRVR)))
	regCVR   = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickCVR)))
	regICSR  = (*volatile.Register32)(unsafe.Pointer(uintptr(scbICSR)))
	regSHPR3 = (*volatile.Register32)(unsafe.Pointer(uintptr(scbSHPR3)))
)

var errSysTickReload = errors.New("systick: reload must be between 1 and 2^24")

// SysTick is the core.HardwareCounter for the Cortex-M system timer.
//
// The timer counts RVR down to 0 and reloads, so a period is RVR+1 ticks.
// It sets PENDSTSET on the step to 0, which is the wrap the clock counts.
type SysTick struct{}

func (SysTick) ReadCounter() uint32 {
	return regCVR.Get() & sysTickMask
}

func (SysTick) ReloadValue() uint32 {
	return (regRVR.Get() & sysTickMask) + 1
}

func (SysTick) ReadPending() bool {
	return regICSR.HasBits(icsrPendSTSet)
}

// ClearPending does nothing: exception entry already cleared PENDSTSET.
// A PENDSTCLR write here would also discard a wrap that latched after
// entry when the handler ran late, instead of letting it tail-chain.
func (SysTick) ClearPending() {}

// Enable programs a period of reload ticks of the processor clock and
// starts the timer with its exception enabled
func (SysTick) Enable(reload uint32, priority uint8) error {
	if reload == 0 || reload > sysTickMask+1 {
		return errSysTickReload
	}

	regCSR.Set(0)
	regRVR.Set(reload - 1)
	regCVR.Set(0) // any write clears the count and COUNTFLAG
	regSHPR3.ReplaceBits(uint32(priority), 0xFF, shpr3SysTickPos)
	regICSR.Set(icsrPendSTClr)
	regCSR.Set(csrEnable | csrTickInt | csrClkSource)
	return nil
}
