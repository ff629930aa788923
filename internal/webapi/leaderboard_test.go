package webapi

import (
	"strings"
	"testing"

	"github.com/overture-project/overture/internal/protocol"
)

const sampleBoard = `2|false|129891|39804|2
0
[bold:0,size:20]xi|[]FREEDOM DiVE
10.0

1000|cookiezi|132408001|2385|0|12|1963|0|8|1201|1|8|124493|1|1381522022|1
1001|rafis|131891356|2385|0|21|1954|0|14|1195|1|72|2558286|2|1459424609|1
garbage row without enough fields
1002|bad-mods|1|1|0|0|1|0|0|0|0|notanumber|5|3|0|0`

func TestParseLeaderboard(t *testing.T) {
	lb, err := ParseLeaderboard(sampleBoard)
	if err != nil {
		t.Fatalf("ParseLeaderboard: %v", err)
	}

	if lb.Status != MapStatusRanked {
		t.Fatalf("status = %d", lb.Status)
	}
	if lb.OnlineID != 129891 || lb.SetID != 39804 {
		t.Fatalf("map ids = %d/%d", lb.OnlineID, lb.SetID)
	}
	if lb.DisplayTitle == "" || !strings.Contains(lb.DisplayTitle, "FREEDOM DiVE") {
		t.Fatalf("display title = %q", lb.DisplayTitle)
	}
	if lb.Rating != 10.0 {
		t.Fatalf("rating = %v", lb.Rating)
	}
	if lb.PersonalBest != nil {
		t.Fatal("empty personal best row parsed as a score")
	}

	// Two valid rows survive; the malformed ones are dropped row-wise.
	if len(lb.Scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(lb.Scores))
	}
	first := lb.Scores[0]
	if first.Username != "cookiezi" || first.TotalScore != 132408001 {
		t.Fatalf("first row = %+v", first)
	}
	if first.Mods != protocol.ModHidden {
		t.Fatalf("first row mods = %v", first.Mods)
	}
	if !first.HasReplay || first.Rank != 1 {
		t.Fatalf("first row flags = %+v", first)
	}
	if lb.Scores[1].Mods != protocol.ModHidden|protocol.ModDoubleTime {
		t.Fatalf("second row mods = %v", lb.Scores[1].Mods)
	}
}

func TestParseLeaderboardUnranked(t *testing.T) {
	lb, err := ParseLeaderboard("0|false|0|0|0")
	if err != nil {
		t.Fatalf("ParseLeaderboard: %v", err)
	}
	if lb.Status != MapStatusPending || len(lb.Scores) != 0 {
		t.Fatalf("unranked board = %+v", lb)
	}
}

func TestParseLeaderboardPersonalBest(t *testing.T) {
	board := "2|false|1|1|1\n0\ntitle\n5.0\n" +
		"500|me|1000|10|0|0|10|0|0|0|1|0|42|57|0|0\n"
	lb, err := ParseLeaderboard(board)
	if err != nil {
		t.Fatalf("ParseLeaderboard: %v", err)
	}
	if lb.PersonalBest == nil {
		t.Fatal("personal best row missing")
	}
	if lb.PersonalBest.UserID != 42 || lb.PersonalBest.Rank != 57 {
		t.Fatalf("personal best = %+v", lb.PersonalBest)
	}
}

func TestParseLeaderboardMalformed(t *testing.T) {
	for _, text := range []string{"", "\n", "1|2"} {
		if _, err := ParseLeaderboard(text); err == nil {
			t.Fatalf("malformed input %q accepted", text)
		}
	}
}

func TestBuildScoreLine(t *testing.T) {
	sub := Submission{
		MapMD5: "d41d8cd98f00b204e9800998ecf8427e",
		Mode:   protocol.ModeStandard,
		Mods:   protocol.ModHidden,
		Rank:   "S",
		Passed: true,
		Score: protocol.ScoreFrame{
			Num300:     100,
			TotalScore: 725000,
			MaxCombo:   144,
			IsPerfect:  true,
		},
	}

	line := buildScoreLine("player", &sub)
	fields := strings.Split(line, ":")
	if len(fields) != 15 {
		t.Fatalf("score line has %d fields: %q", len(fields), line)
	}
	if fields[0] != sub.MapMD5 || fields[1] != "player" {
		t.Fatalf("identity fields = %q", line)
	}
	if fields[10] != "True" || fields[13] != "True" {
		t.Fatalf("boolean fields = %q", line)
	}
	if fields[12] != "8" {
		t.Fatalf("mods field = %q", fields[12])
	}
}
