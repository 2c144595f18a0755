package chip

import (
	"fmt"
	"strings"
	"time"
)

type LogKind string

const (
	LogRound    LogKind = "round"
	LogTurn     LogKind = "turn"
	LogOffer    LogKind = "offer"
	LogResponse LogKind = "response"
	LogPending  LogKind = "pending"
	LogOutcome  LogKind = "outcome"
	LogInfo     LogKind = "info"
)

type LogEntry struct {
	Kind          LogKind    `json:"kind"`
	Round         int        `json:"round"`
	ParticipantID string     `json:"participant_id,omitempty"`
	Text          string     `json:"text"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// Participant is the display identity of a roster member.
type Participant struct {
	PublicID string `json:"public_id"`
	Name     string `json:"name"`
}

// BuildLog replays the snapshot into the transcript viewerID sees. It reads
// nothing but its arguments, so equal snapshots give equal transcripts.
// An empty or unknown viewerID yields the observer transcript.
func BuildLog(cfg StageConfig, pd PublicData, participants []Participant, viewerID string) []LogEntry {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.PublicID] = p.Name
	}
	v := viewer{id: viewerID, names: names, participant: pd.HasParticipant(viewerID)}

	logs := []LogEntry{}
	lastRound := pd.CurrentRound
	if lastRound > cfg.NumRounds-1 {
		lastRound = cfg.NumRounds - 1
	}
	for round := 0; round <= lastRound; round++ {
		rm := pd.ParticipantOfferMap[round]
		isCurrent := round == pd.CurrentRound && !pd.IsGameOver
		if len(rm) == 0 && !isCurrent {
			continue
		}
		logs = append(logs, LogEntry{Kind: LogRound, Round: round, Text: fmt.Sprintf("Round %d of %d", round+1, cfg.NumRounds)})
		for _, id := range pd.TurnOrder {
			tx, ok := rm[id]
			if !ok {
				continue
			}
			logs = append(logs, transactionLogs(cfg, tx, v)...)
		}
	}

	if pd.IsGameOver {
		logs = append(logs, LogEntry{Kind: LogInfo, Round: pd.CurrentRound, Text: "The game has ended.", Timestamp: pd.GameOverAt})
		return logs
	}
	if turn := pd.CurrentTurn; turn != "" {
		if _, ok := pd.Transaction(pd.CurrentRound, turn); !ok {
			text := v.name(turn) + "'s turn to submit an offer!"
			if v.is(turn) {
				text = fmt.Sprintf("Your turn (%s) to submit an offer!", v.name(turn))
			}
			logs = append(logs, LogEntry{Kind: LogTurn, Round: pd.CurrentRound, ParticipantID: turn, Text: text})
		}
	}
	return logs
}

func transactionLogs(cfg StageConfig, tx Transaction, v viewer) []LogEntry {
	offer := tx.Offer
	round := offer.Round
	senderID := offer.SenderID
	sender := v.name(senderID)
	isSender := v.is(senderID)

	possessive := sender + "'s"
	subject := sender + " is"
	if isSender {
		possessive = fmt.Sprintf("Your (%s)", sender)
		subject = fmt.Sprintf("You (%s) are", sender)
	}

	ts := offer.Timestamp
	logs := []LogEntry{
		{Kind: LogTurn, Round: round, ParticipantID: senderID, Text: possessive + " turn to submit an offer!"},
		{
			Kind:          LogOffer,
			Round:         round,
			ParticipantID: senderID,
			Text:          fmt.Sprintf("%s offering %s to get %s in return.", subject, DescribeChips(offer.Sell, cfg.Chips), DescribeChips(offer.Buy, cfg.Chips)),
			Timestamp:     &ts,
		},
	}

	resp, responded := tx.ResponseMap[v.id]
	if !isSender && responded {
		verb := "rejected"
		if resp.Accept {
			verb = "accepted"
		}
		rts := resp.Timestamp
		logs = append(logs, LogEntry{Kind: LogResponse, Round: round, ParticipantID: v.id, Text: "You " + verb + " the offer.", Timestamp: &rts})
	}

	switch tx.Status {
	case StatusPending:
		var text string
		switch {
		case isSender:
			text = "Waiting for other participants to respond to your offer..."
		case responded || !v.participant:
			text = fmt.Sprintf("Waiting for other participants to respond to %s's offer...", sender)
		default:
			text = fmt.Sprintf("‼️ Please evaluate and respond to %s's offer!", sender)
		}
		logs = append(logs, LogEntry{Kind: LogPending, Round: round, ParticipantID: senderID, Text: text})
	case StatusAccepted:
		recipient := v.name(tx.RecipientID)
		if v.is(tx.RecipientID) {
			recipient = fmt.Sprintf("you (%s)", recipient)
		}
		logs = append(logs, LogEntry{
			Kind:          LogOutcome,
			Round:         round,
			ParticipantID: senderID,
			Text:          fmt.Sprintf("🤝 Deal made: %s offer was accepted by %s.", possessive, recipient),
			Timestamp:     tx.ResolvedAt,
		})
	default:
		logs = append(logs, LogEntry{
			Kind:          LogOutcome,
			Round:         round,
			ParticipantID: senderID,
			Text:          fmt.Sprintf("❌ No deal: No one accepted %s offer.", lowerFirst(possessive)),
			Timestamp:     tx.ResolvedAt,
		})
	}
	return logs
}

// DescribeChips renders quantities in chip config order, e.g.
// "🔴 2 red chips, 🔵 1 blue chip, and 🟢 3 green chips".
func DescribeChips(m Inventory, chips []ChipItem) string {
	parts := []string{}
	for _, c := range chips {
		q := m[c.ID]
		if q == 0 {
			continue
		}
		plural := "s"
		if q == 1 {
			plural = ""
		}
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%s %d %s chip%s", c.Avatar, q, c.Name, plural)))
	}
	if len(parts) > 2 {
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
	return strings.Join(parts, " and ")
}

type viewer struct {
	id          string
	names       map[string]string
	participant bool
}

func (v viewer) is(id string) bool {
	return v.participant && id != "" && id == v.id
}

func (v viewer) name(id string) string {
	if n := v.names[id]; n != "" {
		return n
	}
	return id
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
