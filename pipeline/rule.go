package pipeline

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// ErrSampleRejected 样本未通过校验规则.
var ErrSampleRejected = errors.New("sample rejected by rule")

// SampleRule 在样本进入滤波器之前执行的布尔表达式.
// 可用变量：sample (整数读数)、line (1 起始的行号)、index (0 起始的样本序号)。
// 例如 `sample < 0 && sample > -120`。
type SampleRule struct {
	source  string
	program *vm.Program
}

// CompileRule 编译规则，空字符串返回 nil 表示不校验.
func CompileRule(source string) (*SampleRule, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(ruleEnv(0, 0, 0)), expr.AsBool())
	if err != nil {
		return nil, xerrors.Configuration(fmt.Sprintf("failed to compile sample rule %q", source), err)
	}
	return &SampleRule{source: source, program: program}, nil
}

func ruleEnv(sample, line, index int) map[string]any {
	return map[string]any{
		"sample": sample,
		"line":   line,
		"index":  index,
	}
}

// Check 判定单个样本，未通过时返回 InvalidArg 错误.
func (r *SampleRule) Check(s sample, index int) error {
	if r == nil {
		return nil
	}
	out, err := expr.Run(r.program, ruleEnv(s.value, s.line, index))
	if err != nil {
		return xerrors.Internal("sample rule execution error", err).WithContext("rule", r.source)
	}
	if passed, _ := out.(bool); !passed {
		return xerrors.InvalidArg(fmt.Sprintf("line %d: sample %d", s.line, s.value), ErrSampleRejected).
			WithContext("rule", r.source).
			WithContext("line", s.line).
			WithContext("sample", s.value)
	}
	return nil
}

// String 返回规则源码.
func (r *SampleRule) String() string {
	if r == nil {
		return ""
	}
	return r.source
}
