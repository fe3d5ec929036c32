package chat

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voicedesk/voicedesk/pkg/agent"
	"github.com/voicedesk/voicedesk/pkg/db"
	"github.com/voicedesk/voicedesk/pkg/display"
)

// Session is a local operator console that stands in for the telephony
// bridge: each session is one "call", typed instead of spoken. It is also
// where write approvals are answered.
type Session struct {
	database db.Database
	agent    *agent.Agent
	callID   string
	rl       *readline.Instance
	logger   zerolog.Logger
}

// NewSession creates a console session with a fresh call ID.
func NewSession(database db.Database, ag *agent.Agent, logger zerolog.Logger) *Session {
	callID := uuid.NewString()
	return &Session{
		database: database,
		agent:    ag,
		callID:   callID,
		logger:   logger.With().Str("call_id", callID).Logger(),
	}
}

// Approve prompts the operator for a yes/no decision on a pending write.
// Used as the approval hook for the record_row tool.
func (s *Session) Approve(description string) bool {
	fmt.Printf("\nPending write:\n%s\n", description)
	fmt.Print("Approve? [y/N]: ")
	var answer string
	if s.rl != nil {
		line, err := s.rl.Readline()
		if err != nil {
			return false
		}
		answer = line
	} else {
		if _, err := fmt.Scanln(&answer); err != nil {
			return false
		}
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// Start runs the console loop until the operator quits or ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "caller> ",
		HistoryFile: os.ExpandEnv("$HOME/.voicedesk_history"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() {
		if err := rl.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close readline")
		}
	}()
	s.rl = rl

	s.logger.Info().Msg("call started")
	fmt.Printf("Call %s. Type what the caller would say; /help for commands.\n\n", s.callID)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			}
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := s.handleCommand(ctx, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if done {
				break
			}
			continue
		}

		s.handleUtterance(ctx, line)
	}

	s.logger.Info().Msg("call ended")
	fmt.Println("Call ended.")
	return nil
}

// handleCommand processes slash commands. Returns true when the session
// should end.
func (s *Session) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	switch parts[0] {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/h":
		fmt.Println("Commands:")
		fmt.Println("  /tables          list tables in the customer database")
		fmt.Println("  /reset           start a fresh conversation")
		fmt.Println("  /reconnect       drop the cached database connection")
		fmt.Println("  /quit            end the call")
		return false, nil

	case "/tables":
		return false, s.listTables(ctx)

	case "/reset":
		s.agent.ClearConversation()
		fmt.Println("Conversation cleared.")
		return false, nil

	case "/reconnect":
		s.database.Invalidate()
		fmt.Println("Connection invalidated; next query reconnects.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for available commands)", parts[0])
	}
}

// handleUtterance sends one caller line through the agent.
func (s *Session) handleUtterance(ctx context.Context, utterance string) {
	reply, err := s.agent.SendMessage(ctx, utterance)
	if err != nil {
		s.logger.Error().Err(err).Msg("model call failed")
		fmt.Println("assistant> I'm sorry, I'm having trouble right now. Could you say that again?")
		return
	}
	fmt.Printf("assistant> %s\n\n", reply)
}

// listTables is a direct database command for the operator, bypassing the
// model entirely.
func (s *Session) listTables(ctx context.Context) error {
	h, err := s.database.Get(ctx)
	if err != nil {
		fmt.Println("Database is offline.")
		return nil
	}
	tables, err := s.database.ListTables(ctx, h)
	if err != nil {
		return err
	}

	rs := &db.RowSet{Columns: []string{"schema", "table", "type"}}
	for _, t := range tables {
		rs.Rows = append(rs.Rows, []any{t.Schema, t.Name, t.Type})
	}
	fmt.Print(display.RenderRowSet(rs, display.GetTerminalWidth()))
	return nil
}
