package compare

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// DefaultScriptBudget bounds one evaluation of a script rule.
const DefaultScriptBudget = 250 * time.Millisecond

var errScriptTimeout = errors.New("script rule exceeded its time budget")

// scriptEvaluator runs script rules in a single VM per comparison. Programs
// are compiled once per rule text.
type scriptEvaluator struct {
	budget   time.Duration
	vm       *goja.Runtime
	programs map[string]*goja.Program
}

func newScriptEvaluator(budget time.Duration) *scriptEvaluator {
	if budget <= 0 {
		budget = DefaultScriptBudget
	}
	return &scriptEvaluator{budget: budget, programs: make(map[string]*goja.Program)}
}

// match evaluates expr with produced, reference and line bound and reports
// whether the result is truthy.
func (e *scriptEvaluator) match(expr, produced, reference string, line int) (ok bool, err error) {
	prog, found := e.programs[expr]
	if !found {
		prog, err = goja.Compile("rule", expr, false)
		if err != nil {
			return false, errors.Wrap(err, "compile script rule")
		}
		e.programs[expr] = prog
	}
	if e.vm == nil {
		e.vm = goja.New()
	}
	vm := e.vm
	for name, v := range map[string]any{"produced": produced, "reference": reference, "line": line} {
		if err := vm.Set(name, v); err != nil {
			return false, errors.Wrapf(err, "bind %s", name)
		}
	}

	fired := make(chan struct{})
	timer := time.AfterFunc(e.budget, func() {
		vm.Interrupt(errScriptTimeout)
		close(fired)
	})
	defer func() {
		// A late interrupt must land before ClearInterrupt, or it would abort
		// the next evaluation on this VM.
		if !timer.Stop() {
			<-fired
		}
		vm.ClearInterrupt()
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("script rule panic: %v", r)
		}
	}()

	v, err := vm.RunProgram(prog)
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return false, errScriptTimeout
		}
		return false, errors.Wrap(err, "evaluate script rule")
	}
	return v.ToBoolean(), nil
}
