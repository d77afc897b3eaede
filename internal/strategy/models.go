package strategy

// PositionState 交易状态机的状态
type PositionState string

const (
	StateFlat PositionState = "FLAT" // 空仓
	StateOpen PositionState = "OPEN" // 持有空头仓位
)

func (s PositionState) String() string {
	return string(s)
}

// 入场信号的处理结果
const (
	EntryOpened  = "opened"
	EntrySkipped = "skipped"
)
