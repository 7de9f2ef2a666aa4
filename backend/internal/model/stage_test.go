package model

import (
	"encoding/json"
	"testing"
)

func TestParseStage_Valid(t *testing.T) {
	cases := map[string]Stage{
		"1.relinquishment": {Round: "1", Phase: PhaseRelinquishment},
		"2.paid":           {Round: "2", Phase: PhasePaid},
		"1.confirm":        {Round: "1", Phase: PhaseConfirm},
		"9.complete":       StageFinal,
		"x.nuking":         StageTeardown,
	}
	for in, want := range cases {
		got, err := ParseStage(in)
		if err != nil {
			t.Fatalf("解析 %q 失败: %v", in, err)
		}
		if got != want {
			t.Errorf("解析 %q 期望 %+v，实际 %+v", in, want, got)
		}
		if got.String() != in {
			t.Errorf("String() 期望 %q，实际 %q", in, got.String())
		}
	}
}

func TestParseStage_Invalid(t *testing.T) {
	for _, in := range []string{"", "1", "1.", ".exchange", "1.unknown", "9.exchange", "x.complete", "12.exchange", "0.exchange"} {
		if _, err := ParseStage(in); err != ErrInvalidStage {
			t.Errorf("%q 应被拒绝，实际 err=%v", in, err)
		}
	}
}

func TestStage_RoundNumber(t *testing.T) {
	if n := MustStage("2.exchange").RoundNumber(); n != 2 {
		t.Errorf("期望 2，实际 %d", n)
	}
	if n := StageFinal.RoundNumber(); n != 0 {
		t.Errorf("终态轮次应为 0，实际 %d", n)
	}
	if n := StageTeardown.RoundNumber(); n != 0 {
		t.Errorf("删除标记轮次应为 0，实际 %d", n)
	}
}

func TestStage_In(t *testing.T) {
	st := MustStage("2.payment").In(PhasePaid)
	if st.String() != "2.paid" {
		t.Errorf("期望 2.paid，实际 %s", st)
	}
}

func TestExchangeState_JSON(t *testing.T) {
	b, _ := json.Marshal(struct {
		State ExchangeState `json:"state"`
	}{ExchangeStatePending})
	if string(b) != `{"state":false}` {
		t.Errorf("待处理状态应序列化为 false，实际 %s", b)
	}

	var v struct {
		State ExchangeState `json:"state"`
	}
	if err := json.Unmarshal([]byte(`{"state":false}`), &v); err != nil || v.State != ExchangeStatePending {
		t.Errorf("false 应解析为 pending，实际 %q err=%v", v.State, err)
	}
	if err := json.Unmarshal([]byte(`{"state":"gone"}`), &v); err != nil || v.State != ExchangeStateGone {
		t.Errorf("期望 gone，实际 %q err=%v", v.State, err)
	}
}

func TestSeatMap_FromRows(t *testing.T) {
	m := NewSeatMap([]SchoolSeat{
		{SchoolID: "s", Round: "1", SessionID: "GA", Count: 2},
		{SchoolID: "s", Round: "1", SessionID: "SC", Count: 0},
		{SchoolID: "s", Round: "2", SessionID: "GA", Count: 1},
	})
	if m.Get("1", "GA") != 2 || m.Get("2", "GA") != 1 {
		t.Errorf("名额表组装错误: %v", m)
	}
	if _, ok := m["1"]["SC"]; ok {
		t.Error("零值行不应出现在名额表中")
	}
	if m.Total()["GA"] != 3 {
		t.Errorf("GA 合计应为 3，实际 %d", m.Total()["GA"])
	}
}

func TestQuota_Importance(t *testing.T) {
	q := Quota{Paid: true, Delegate: true}
	if q.Importance() != 12 {
		t.Errorf("期望 12，实际 %d", q.Importance())
	}
	q = Quota{Delegate: true}
	if q.Importance() != 4 {
		t.Errorf("期望 4，实际 %d", q.Importance())
	}
}

func TestParseExchangeState(t *testing.T) {
	cases := map[string]ExchangeState{
		"false":    ExchangeStatePending,
		"0":        ExchangeStatePending,
		"pending":  ExchangeStatePending,
		"refused":  ExchangeStateRefused,
		"accepted": ExchangeStateAccepted,
	}
	for in, want := range cases {
		if got := ParseExchangeState(in); got != want {
			t.Errorf("解析 %q 期望 %s，实际 %s", in, want, got)
		}
	}
}
