package sql

import "testing"

func TestTokenize(t *testing.T) {
	tokens := tokenize(`insert into shop.users values (name:"Ann, Lee", age:30)`)

	expected := []TokenType{Insert, Into, Identifier, Values, ParenOpen, Identifier, Comma, Identifier, ParenClose, EOF}
	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, tt := range expected {
		if tokens[i].Type != tt {
			t.Errorf("Token %d: expected type %d, got %v", i, tt, tokens[i])
		}
	}

	if tokens[5].Value != `name:"Ann, Lee"` {
		t.Errorf("Expected quoted section to stay in one word, got %q", tokens[5].Value)
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	for _, word := range []string{"select", "SELECT", "SeLeCt"} {
		if got := NewLexer(word).NextToken().Type; got != Select {
			t.Errorf("Expected Select for %q, got %d", word, got)
		}
	}
}

func TestPeekToken(t *testing.T) {
	lexer := NewLexer("use shop")

	if peeked := lexer.PeekToken(); peeked.Type != Use {
		t.Errorf("Expected Use, got %v", peeked)
	}
	if next := lexer.NextToken(); next.Type != Use {
		t.Errorf("Expected peek not to consume, got %v", next)
	}
	if next := lexer.NextToken(); next.Value != "shop" {
		t.Errorf("Expected shop, got %v", next)
	}
}

func TestReadRaw(t *testing.T) {
	lexer := NewLexer("a:1, b:(2) ) tail")

	raw, ok := lexer.ReadRaw(ParenClose)
	if !ok {
		t.Fatal("Expected closing parenthesis to be found")
	}
	if raw != "a:1, b:(2)" {
		t.Errorf("Expected %q, got %q", "a:1, b:(2)", raw)
	}
	if rest := lexer.Rest(); rest != "tail" {
		t.Errorf("Expected rest 'tail', got %q", rest)
	}
}
