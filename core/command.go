package core

import (
	"math"
	"sync"

	"trigdaq/protocol"
)

// Operation is a protocol command letter
type Operation byte

const (
	OpNone            Operation = 0
	OpResetPeripheral Operation = Operation(protocol.OpResetPeripheral)
	OpDump            Operation = Operation(protocol.OpDump)
	OpSetLimit        Operation = Operation(protocol.OpSetLimit)
	OpReport          Operation = Operation(protocol.OpReport)
	OpReserved        Operation = Operation(protocol.OpReserved)
	OpArm             Operation = Operation(protocol.OpArm)
)

// CommandHandler handles one dispatched command with its decimal argument
type CommandHandler func(arg uint32) error

// Command represents a registered protocol operation
type Command struct {
	Op      Operation
	Name    string
	Handler CommandHandler
}

// CommandRegistry holds all registered operations keyed by letter
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[Operation]*Command
	order    []Operation
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[Operation]*Command),
	}
}

// Register binds a letter to a handler. Re-registering a letter replaces
// its handler.
func (r *CommandRegistry) Register(op Operation, name string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[op]; !exists {
		r.order = append(r.order, op)
	}
	r.commands[op] = &Command{Op: op, Name: name, Handler: handler}
}

// Lookup retrieves a command by letter
func (r *CommandRegistry) Lookup(op Operation) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[op]
	return cmd, ok
}

// Count returns the number of registered operations
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler for op
func (r *CommandRegistry) Dispatch(op Operation, arg uint32) error {
	cmd, ok := r.Lookup(op)
	if !ok {
		return wrap(ErrUnknownOperation, printableByte(byte(op)))
	}
	if cmd.Handler == nil {
		return nil
	}
	return cmd.Handler(arg)
}

// Help lists the registered operations, one "letter name" per line.
func (r *CommandRegistry) Help() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	help := ""
	for _, op := range r.order {
		help += string(rune(op)) + " " + r.commands[op].Name + "\n"
	}
	return help
}

// ParserState names the parser's position in the command grammar
type ParserState uint8

const (
	ParserIdle ParserState = iota
	ParserDigitsAccumulating
	ParserOperationPending
)

// Parser is the byte-at-a-time command state machine. Nothing happens until
// the terminator; the state is always clean after it.
type Parser struct {
	registry *CommandRegistry
	pending  Operation
	value    uint32
	digits   bool
	overflow bool
}

// NewParser creates a parser dispatching into registry
func NewParser(registry *CommandRegistry) *Parser {
	return &Parser{registry: registry}
}

// State returns the current grammar state
func (p *Parser) State() ParserState {
	switch {
	case p.pending != OpNone:
		return ParserOperationPending
	case p.digits:
		return ParserDigitsAccumulating
	default:
		return ParserIdle
	}
}

// Pending returns the pending operation and accumulated argument
func (p *Parser) Pending() (Operation, uint32) {
	return p.pending, p.value
}

// Reset abandons any partial command
func (p *Parser) Reset() {
	p.pending = OpNone
	p.value = 0
	p.digits = false
	p.overflow = false
}

// Feed consumes one byte. It returns ErrMalformedCommand for a discarded
// command, ErrArgumentOverflow for a rejected one, or the handler's error.
func (p *Parser) Feed(b byte) error {
	switch {
	case b >= '0' && b <= '9':
		p.digits = true
		if p.overflow {
			return nil
		}
		d := uint32(b - '0')
		if p.value > (math.MaxUint32-d)/10 {
			p.overflow = true
			return nil
		}
		p.value = p.value*10 + d
		return nil

	case b == protocol.Terminator:
		op, arg, overflow := p.pending, p.value, p.overflow
		p.Reset()
		if op == OpNone {
			return ErrMalformedCommand
		}
		if overflow {
			return ErrArgumentOverflow
		}
		return p.registry.Dispatch(op, arg)

	default:
		if _, ok := p.registry.Lookup(Operation(b)); ok {
			p.pending = Operation(b)
			return nil
		}
		p.Reset()
		return wrap(ErrMalformedCommand, printableByte(b))
	}
}
