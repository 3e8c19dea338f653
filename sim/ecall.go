package sim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/machine"
)

// sysent maps newlib a7 syscall numbers to their names. Entries with a
// nil handler are recognized but not simulated; reaching one stops the
// run. The table is consulted before the bare-metal a0 convention below,
// so a program linked against newlib fails loudly instead of silently
// hitting the wrong protocol.
var sysent = map[uint64]syscall{
	57:  {name: "close"},
	62:  {name: "lseek"},
	63:  {name: "read"},
	64:  {name: "write"},
	80:  {name: "fstat"},
	93:  {name: "exit", handler: sysExit},
	214: {name: "sbrk"},
}

type syscall struct {
	name    string
	handler func(f *Inflight, m *machine.Machine, log zerolog.Logger) (uint64, bool)
}

// Bare-metal environment call codes, dispatched on a0 when a7 does not
// match any newlib number. These are harness-defined values, not a
// general syscall ABI.
const (
	ecallPrintHex = 1
	ecallExit     = 10
)

func sysExit(f *Inflight, m *machine.Machine, log zerolog.Logger) (uint64, bool) {
	_ = m
	log.Debug().Uint64("pc", f.pc).Uint64("status", f.val1).Msg("exit syscall")
	return machine.HaltAddr, true
}

// ecall dispatches an environment call during execute. f.val1 and
// f.val2 hold a0 and a1, f.sysNo holds a7, all read at decode.
func (f *Inflight) ecall(m *machine.Machine, log zerolog.Logger) (uint64, bool) {
	if sc, ok := sysent[f.sysNo]; ok {
		if sc.handler == nil {
			log.Warn().Uint64("pc", f.pc).Str("syscall", sc.name).
				Msg("syscall is not simulated")
			return machine.HaltAddr, true
		}
		return sc.handler(f, m, log)
	}

	switch f.val1 {
	case ecallPrintHex:
		fmt.Fprintf(m.Stdout, "%#x\n", f.val2)
		log.Debug().Uint64("pc", f.pc).Uint64("value", f.val2).Msg("ecall print")
		f.stage = StageMemory
		return 0, false
	case ecallExit:
		log.Debug().Uint64("pc", f.pc).Msg("ecall exit")
		return machine.HaltAddr, true
	default:
		log.Warn().Uint64("pc", f.pc).Uint64("a0", f.val1).Uint64("a7", f.sysNo).
			Msg("unknown environment call")
		return machine.HaltAddr, true
	}
}
