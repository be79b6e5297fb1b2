package sql

import "strings"

type Token struct {
	Type  TokenType
	Value string
	// Pos is the byte offset of the token in the input.
	Pos int
}

type TokenType int

const (
	Identifier TokenType = iota
	DatabaseIdentifier
	TableIdentifier
	Wildcard
	Comma
	ParenOpen
	ParenClose
	Create
	Drop
	List
	Use
	Insert
	Into
	Values
	Select
	From
	Where
	Update
	Set
	Delete
	History
	Restore
	Export
	Import
	To
	EOF
)

var punctuation = map[TokenType]string{
	DatabaseIdentifier: "DatabaseIdentifier",
	TableIdentifier:    "TableIdentifier",
	Wildcard:           "Wildcard",
	Comma:              "Comma",
	ParenOpen:          "ParenOpen",
	ParenClose:         "ParenClose",
	EOF:                "EOF",
}

func (token Token) String() string {
	if token.Type == Identifier {
		return "Identifier(" + token.Value + ")"
	}
	if name, ok := punctuation[token.Type]; ok {
		return name
	}
	return strings.ToUpper(token.Value)
}

// Lexer splits a command line into tokens. A word is any run of characters
// other than whitespace, parentheses and commas; a double-quoted section is
// always part of the surrounding word, so name:"Ann, Lee" is one token.
type Lexer struct {
	input    string
	position int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

func (lexer *Lexer) NextToken() Token {
	lexer.skipWhitespace()

	if lexer.position >= len(lexer.input) {
		return Token{Type: EOF, Pos: len(lexer.input)}
	}

	start := lexer.position
	switch lexer.input[start] {
	case '(':
		lexer.position++
		return Token{Type: ParenOpen, Value: "(", Pos: start}
	case ')':
		lexer.position++
		return Token{Type: ParenClose, Value: ")", Pos: start}
	case ',':
		lexer.position++
		return Token{Type: Comma, Value: ",", Pos: start}
	}

	word := lexer.readWord()
	if word == "*" {
		return Token{Type: Wildcard, Value: word, Pos: start}
	}
	return Token{Type: lookupIdentifier(word), Value: word, Pos: start}
}

func (lexer *Lexer) PeekToken() Token {
	saved := lexer.position
	token := lexer.NextToken()
	lexer.position = saved
	return token
}

// ReadRaw returns the input text between the current position and the next
// stop token outside quotes and nested parentheses, and consumes the stop
// token. It reports false when the input ends first; the text read so far is
// still returned.
func (lexer *Lexer) ReadRaw(stop TokenType) (string, bool) {
	start := lexer.position
	depth := 0
	for {
		token := lexer.NextToken()
		switch {
		case token.Type == EOF:
			return strings.TrimSpace(lexer.input[start:]), false
		case token.Type == stop && depth == 0:
			return strings.TrimSpace(lexer.input[start:token.Pos]), true
		case token.Type == ParenOpen:
			depth++
		case token.Type == ParenClose && depth > 0:
			depth--
		}
	}
}

// Rest consumes and returns the remaining input, trimmed.
func (lexer *Lexer) Rest() string {
	rest := strings.TrimSpace(lexer.input[lexer.position:])
	lexer.position = len(lexer.input)
	return rest
}

func (lexer *Lexer) skipWhitespace() {
	for lexer.position < len(lexer.input) && isWhitespace(lexer.input[lexer.position]) {
		lexer.position++
	}
}

func (lexer *Lexer) readWord() string {
	start := lexer.position
	inQuote := false
	for lexer.position < len(lexer.input) {
		ch := lexer.input[lexer.position]
		if ch == '"' {
			inQuote = !inQuote
		} else if !inQuote && (isWhitespace(ch) || ch == '(' || ch == ')' || ch == ',') {
			break
		}
		lexer.position++
	}
	return lexer.input[start:lexer.position]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// keywords maps upper-cased words to their token type. DB and TABLE accept
// their long and plural spellings.
var keywords = map[string]TokenType{
	"DB": DatabaseIdentifier, "DATABASE": DatabaseIdentifier, "DATABASES": DatabaseIdentifier,
	"TABLE": TableIdentifier, "TABLES": TableIdentifier,
	"CREATE": Create, "DROP": Drop, "LIST": List, "USE": Use,
	"INSERT": Insert, "INTO": Into, "VALUES": Values,
	"SELECT": Select, "FROM": From, "WHERE": Where,
	"UPDATE": Update, "SET": Set, "DELETE": Delete,
	"HISTORY": History, "RESTORE": Restore,
	"EXPORT": Export, "IMPORT": Import, "TO": To,
}

func lookupIdentifier(word string) TokenType {
	if tt, ok := keywords[strings.ToUpper(word)]; ok {
		return tt
	}
	return Identifier
}

func tokenize(input string) []Token {
	lexer := NewLexer(input)

	var tokens []Token
	for {
		token := lexer.NextToken()
		if token.Type == EOF {
			return append(tokens, token)
		}
		tokens = append(tokens, token)
	}
}
