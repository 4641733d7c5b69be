package expression

import (
	"fmt"
	"strconv"
)

// node is a parsed expression that can be evaluated against an environment.
type node interface {
	eval(env *environment) (any, error)
}

type literalNode struct{ value any }

type identNode struct{ name string }

type callNode struct {
	name string
	args []node
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type parser struct {
	tokens []token
	pos    int
}

// parse builds the syntax tree of a single ${...} body.
func parse(src string) (node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}

	if p.peek().kind == tokenEOF {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}

	return n, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}

	return tok
}

func (p *parser) acceptOperator(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokenOperator {
		return "", false
	}

	for _, op := range ops {
		if tok.text == op {
			p.pos++

			return op, true
		}
	}

	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.acceptOperator("||"); !ok {
			return left, nil
		}

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.acceptOperator("&&"); !ok {
			return left, nil
		}

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.acceptOperator("!"); ok {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return &unaryNode{op: "!", operand: operand}, nil
	}

	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	op, ok := p.acceptOperator("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()

	switch tok.kind {
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q at %d", ErrSyntax, tok.text, tok.pos)
		}

		return &literalNode{value: f}, nil
	case tokenString:
		return &literalNode{value: tok.value}, nil
	case tokenIdent:
		switch tok.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "nil":
			return &literalNode{value: nil}, nil
		}

		if p.peek().kind == tokenLParen {
			return p.parseCall(tok.text)
		}

		return &identNode{name: tok.text}, nil
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("%w: expected ) at %d", ErrSyntax, closing.pos)
		}

		return inner, nil
	case tokenEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
}

func (p *parser) parseCall(name string) (node, error) {
	p.next() // (

	call := &callNode{name: name}

	if p.peek().kind == tokenRParen {
		p.next()

		return call, nil
	}

	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		call.args = append(call.args, arg)

		switch tok := p.next(); tok.kind {
		case tokenComma:
			continue
		case tokenRParen:
			return call, nil
		default:
			return nil, fmt.Errorf("%w: expected , or ) at %d", ErrSyntax, tok.pos)
		}
	}
}
