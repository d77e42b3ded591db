package ingest

import (
	"testing"
	"time"

	"github.com/polyinsider/pulse/internal/store"
)

func TestParseChangeMarketUpdate(t *testing.T) {
	data := []byte(`{"type":"change","ref":"abc","table":"markets","event":"update",
		"record":{"id":"m1","question":"Q?","price":"0.73","closed":true},
		"commit_timestamp":"1714557600000"}`)

	change, msgType, err := ParseChange(data)
	if err != nil {
		t.Fatalf("ParseChange: %v", err)
	}
	if msgType != MsgChange {
		t.Errorf("type = %q", msgType)
	}
	if change.Ref != "abc" || change.Table != "markets" || change.Event != store.EventUpdate {
		t.Errorf("change = %+v", change)
	}
	if change.Market == nil || change.Market.ID != "m1" || !change.Market.Closed {
		t.Fatalf("market = %+v", change.Market)
	}
	if change.Market.Price.String() != "0.73" {
		t.Errorf("price = %s", change.Market.Price)
	}
	if change.Record["question"] != "Q?" {
		t.Errorf("record = %v", change.Record)
	}
	if !change.CommitTime.Equal(time.UnixMilli(1714557600000)) {
		t.Errorf("commit time = %v", change.CommitTime)
	}
}

func TestParseChangeOtherTables(t *testing.T) {
	change, _, err := ParseChange([]byte(`{"type":"change","table":"comments","event":"INSERT","record":{"id":7,"body":"hi"}}`))
	if err != nil {
		t.Fatalf("ParseChange: %v", err)
	}
	if change.Market != nil {
		t.Error("non-market table decoded a market")
	}
	if change.Record["body"] != "hi" {
		t.Errorf("record = %v", change.Record)
	}
}

func TestParseChangeNonChangeMessages(t *testing.T) {
	change, msgType, err := ParseChange([]byte(`{"type":"subscribed","ref":"abc"}`))
	if err != nil || change != nil || msgType != MsgSubscribed {
		t.Errorf("ParseChange(subscribed) = %v, %q, %v", change, msgType, err)
	}

	for _, bad := range []string{
		`not json`,
		`{"type":"change","event":"UPDATE"}`,
		`{"type":"change","table":"markets","event":"UPSERT"}`,
	} {
		if _, _, err := ParseChange([]byte(bad)); err == nil {
			t.Errorf("ParseChange(%s) succeeded", bad)
		}
	}
}

func TestParseMarketsWrapped(t *testing.T) {
	markets, err := ParseMarkets([]byte(`{"markets":[{"id":"a","price":"0.5"}]}`))
	if err != nil || len(markets) != 1 || markets[0].ID != "a" {
		t.Errorf("ParseMarkets(wrapped) = %+v, %v", markets, err)
	}

	if _, err := ParseMarkets([]byte(`"nope"`)); err == nil {
		t.Error("expected error for a string body")
	}
}

func TestExtractTokenIDs(t *testing.T) {
	markets, err := ParseMarkets([]byte(marketsJSON))
	if err != nil {
		t.Fatalf("ParseMarkets: %v", err)
	}

	ids := ExtractTokenIDs(markets)
	want := []string{"t1", "t2", "t3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	if got := parseTimestamp("1714557600"); !got.Equal(time.Unix(1714557600, 0)) {
		t.Errorf("seconds = %v", got)
	}
	if got := parseTimestamp("", "2024-05-01T10:00:00.5Z"); got.Nanosecond() != 500000000 {
		t.Errorf("rfc3339 fraction = %v", got)
	}
}
