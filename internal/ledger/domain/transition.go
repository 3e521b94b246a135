package domain

import "fmt"

// transitions 状态机转移表：key 是当前状态，value 是允许去的状态
// 终态也必须出现在表里（空列表），漏掉的状态在测试里会被发现
type transitions[S comparable] map[S][]S

func (t transitions[S]) allowed(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (t transitions[S]) terminal(s S) bool {
	next, ok := t[s]
	return ok && len(next) == 0
}

// TransitionError 非法状态迁移
type TransitionError struct {
	Entity string
	From   fmt.Stringer
	To     fmt.Stringer
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}
