package editor

import "github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"

// DefaultMaxHistorySize 默认每个上下文保留的命令数
const DefaultMaxHistorySize = 50

// Ledger 单个编辑上下文的线性历史
//
// index 为 -1 表示空，否则指向最近一次应用且未被撤销的命令；index 之后的条目不会保留。
type Ledger struct {
	commands []Command
	index    int
	max      int
}

// NewLedger max <= 0 时使用默认值
func NewLedger(max int) *Ledger {
	if max <= 0 {
		max = DefaultMaxHistorySize
	}
	return &Ledger{index: -1, max: max}
}

// Push 截断 index 之后的条目后追加，超出上限时淘汰最旧的一条
func (l *Ledger) Push(c Command) {
	kept := l.commands[:l.index+1]
	l.commands = append(kept[:len(kept):len(kept)], c)
	l.index++

	if len(l.commands) > l.max {
		l.commands = l.commands[1:]
		l.index--
	}
}

// Current 当前可撤销的命令
func (l *Ledger) Current() (Command, bool) {
	if l.index < 0 {
		return Command{}, false
	}
	return l.commands[l.index], true
}

// Back 撤销后回退 index，并丢弃已消费的条目
func (l *Ledger) Back() {
	if l.index < 0 {
		return
	}
	l.commands = l.commands[:l.index]
	l.index--
}

func (l *Ledger) CanUndo() bool { return l.index >= 0 }
func (l *Ledger) Len() int       { return len(l.commands) }
func (l *Ledger) Index() int     { return l.index }
func (l *Ledger) Max() int       { return l.max }

// Clone 复制 ledger，副本与原 ledger 互不影响
func (l *Ledger) Clone() *Ledger {
	return &Ledger{commands: l.Commands(), index: l.index, max: l.max}
}

// Commands 返回命令副本，按时间顺序
func (l *Ledger) Commands() []Command {
	out := make([]Command, len(l.commands))
	copy(out, l.commands)
	return out
}

// History 两个互不干扰的上下文历史
type History struct {
	ledgers map[model.EditMode]*Ledger
}

// NewHistory 为 ocr 与 processed 各建一个 Ledger
func NewHistory(max int) *History {
	return &History{
		ledgers: map[model.EditMode]*Ledger{
			model.ModeOCR:       NewLedger(max),
			model.ModeProcessed: NewLedger(max),
		},
	}
}

// Ledger 返回指定上下文的历史，未知上下文按 ocr 处理
func (h *History) Ledger(mode model.EditMode) *Ledger {
	if l, ok := h.ledgers[mode]; ok {
		return l
	}
	return h.ledgers[model.ModeOCR]
}
