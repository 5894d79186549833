package extractor

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindAnalyze Kind = iota
	KindStart
	KindHelp
	KindStats
	KindUnknown
)

// Command is an inbound chat message reduced to what the bot acts on.
// Address and Chain are raw user input; validation happens in token.ParseQuery.
type Command struct {
	Kind    Kind
	Name    string // slash command name without the leading "/"
	Address string
	Chain   string
}

var (
	// https://app.bubblemaps.io/eth/token/0x...
	bubblemapLinkRe = regexp.MustCompile(`https?://(?:www\.)?app\.bubblemaps\.io/([A-Za-z]+)/token/(0x[a-fA-F0-9]{40})`)
	evmAddrRe       = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	slashCommands = map[string]Kind{
		"start": KindStart,
		"help":  KindHelp,
		"stats": KindStats,
	}
)

// Parse reads "<address> [chain]", a bubblemap link, or a slash command.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "/") {
		word := strings.Fields(text)[0][1:]
		// "/stats@SomeBot" in group chats
		if i := strings.Index(word, "@"); i >= 0 {
			word = word[:i]
		}
		word = strings.ToLower(word)
		if k, ok := slashCommands[word]; ok {
			return Command{Kind: k, Name: word}
		}
		return Command{Kind: KindUnknown, Name: word}
	}

	if m := bubblemapLinkRe.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindAnalyze, Chain: strings.ToLower(m[1]), Address: m[2]}
	}

	parts := strings.Fields(text)
	cmd := Command{Kind: KindAnalyze}
	if len(parts) > 0 {
		cmd.Address = parts[0]
	}
	if len(parts) > 1 {
		cmd.Chain = strings.ToLower(parts[1])
	}
	return cmd
}

// LooksLikeAddress is a cheap shape check used before logging raw input.
func LooksLikeAddress(s string) bool {
	return evmAddrRe.MatchString(s)
}

// Abbrev shortens an address for log lines.
func Abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
