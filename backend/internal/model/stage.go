package model

import (
	"errors"
	"strconv"
	"strings"
)

// Phase 单轮内的流程阶段
type Phase string

const (
	PhaseRelinquishment Phase = "relinquishment" // 名额释放
	PhaseExchange       Phase = "exchange"       // 名额交换
	PhaseReservation    Phase = "reservation"    // 住宿预订
	PhasePayment        Phase = "payment"        // 待缴费
	PhasePaid           Phase = "paid"           // 已提交缴费凭证，待财务审核
	PhaseComplete       Phase = "complete"       // 本轮完成
	PhaseConfirm        Phase = "confirm"        // 代表名单确认中
	PhaseNuking         Phase = "nuking"         // 删除中
)

const (
	RoundFinal    = "9" // 9.complete：名单锁定后的终态
	RoundTeardown = "x" // x.nuking：管理员删除学校时的标记
)

var ErrInvalidStage = errors.New("无效的阶段格式")

var validPhases = map[Phase]bool{
	PhaseRelinquishment: true,
	PhaseExchange:       true,
	PhaseReservation:    true,
	PhasePayment:        true,
	PhasePaid:           true,
	PhaseComplete:       true,
	PhaseConfirm:        true,
}

// Stage 学校所处阶段，字符串形式为 "{round}.{phase}"，如 "1.exchange"
type Stage struct {
	Round string
	Phase Phase
}

// ParseStage 解析阶段字符串
func ParseStage(s string) (Stage, error) {
	round, phase, ok := strings.Cut(s, ".")
	if !ok || round == "" {
		return Stage{}, ErrInvalidStage
	}
	st := Stage{Round: round, Phase: Phase(phase)}

	switch {
	case round == RoundTeardown:
		if st.Phase != PhaseNuking {
			return Stage{}, ErrInvalidStage
		}
	case round == RoundFinal:
		if st.Phase != PhaseComplete {
			return Stage{}, ErrInvalidStage
		}
	default:
		if len(round) != 1 || round[0] < '1' || round[0] > '8' || !validPhases[st.Phase] {
			return Stage{}, ErrInvalidStage
		}
	}
	return st, nil
}

// MustStage 用于常量阶段的构造
func MustStage(s string) Stage {
	st, err := ParseStage(s)
	if err != nil {
		panic(err)
	}
	return st
}

func (s Stage) String() string {
	return s.Round + "." + string(s.Phase)
}

// In 返回同一轮次下的另一阶段
func (s Stage) In(p Phase) Stage {
	return Stage{Round: s.Round, Phase: p}
}

// RoundNumber 轮次数字；终态与删除标记返回 0
func (s Stage) RoundNumber() int {
	n, err := strconv.Atoi(s.Round)
	if err != nil || s.Round == RoundFinal {
		return 0
	}
	return n
}

var (
	StageInitial  = Stage{Round: "1", Phase: PhaseRelinquishment}
	StageFinal    = Stage{Round: RoundFinal, Phase: PhaseComplete}
	StageTeardown = Stage{Round: RoundTeardown, Phase: PhaseNuking}
)
