package strategy

import "math"

// SizePosition 根据资金、单笔风险比例、止损点数和合约乘数计算开仓手数
// 最大亏损 = capital * riskPercent / 100；每手风险 = slPoints * lotSize；手数向下取整
// 止损点数或合约乘数不为正时返回 0，调用方应跳过本次交易
func SizePosition(capital, riskPercent, slPoints float64, lotSize int) int {
	if slPoints <= 0 || lotSize <= 0 {
		return 0
	}
	maxLossPerTrade := capital * (riskPercent / 100)
	riskPerLot := slPoints * float64(lotSize)
	if riskPerLot <= 0 || maxLossPerTrade <= 0 {
		return 0
	}
	lots := math.Floor(maxLossPerTrade / riskPerLot)
	if lots > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(lots)
}
