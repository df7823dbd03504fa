package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	tokenRegex = regexp.MustCompile(`(?i)(\d*d\d+|\d+|[+\-*/])`)
	diceRegex  = regexp.MustCompile(`(?i)^(\d*)d(\d+)$`)
	validOps   = map[string]bool{"+": true, "-": true, "*": true, "/": true}
)

type term struct {
	value int
	desc  string
	op    string
}

// Roll is an evaluated dice formula.
type Roll struct {
	Formula string
	Detail  string
	Total   int
}

// Evaluate rolls a formula such as `2d6+1d4*2-3`. Multiplication and
// division bind to the term before them. intn returns a value in [0, n).
func Evaluate(formula string, intn func(n int) int) (Roll, error) {
	formula = strings.ReplaceAll(formula, " ", "")
	tokens := tokenRegex.FindAllString(formula, -1)
	if len(tokens) == 0 || strings.Join(tokens, "") != formula {
		return Roll{}, fmt.Errorf("can't parse `%s`, try something like `2d6+1d4*2-3`", formula)
	}

	var terms []term
	op := "+"
	for _, token := range tokens {
		if validOps[token] {
			op = token
			continue
		}
		val, desc, err := evaluateToken(token, intn)
		if err != nil {
			return Roll{}, fmt.Errorf("failed to evaluate `%s`: %w", token, err)
		}
		terms = append(terms, term{value: val, desc: desc, op: op})
	}

	var merged []term
	for _, t := range terms {
		if t.op != "*" && t.op != "/" {
			merged = append(merged, t)
			continue
		}
		if len(merged) == 0 {
			return Roll{}, fmt.Errorf("can't multiply or divide by nothing")
		}
		prev := merged[len(merged)-1]
		if t.op == "/" && t.value == 0 {
			return Roll{}, fmt.Errorf("can't divide by zero")
		}
		if t.op == "*" {
			prev.value *= t.value
		} else {
			prev.value /= t.value
		}
		prev.desc = fmt.Sprintf("%s %s %s", prev.desc, t.op, t.desc)
		merged[len(merged)-1] = prev
	}

	roll := Roll{Formula: formula}
	var details []string
	for _, t := range merged {
		if len(details) > 0 {
			details = append(details, " "+t.op+" ")
		}
		details = append(details, t.desc)

		if t.op == "-" {
			roll.Total -= t.value
		} else {
			roll.Total += t.value
		}
	}
	roll.Detail = strings.Join(details, "")
	return roll, nil
}

func evaluateToken(token string, intn func(int) int) (int, string, error) {
	if m := diceRegex.FindStringSubmatch(token); m != nil {
		count := 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return 0, "", fmt.Errorf("invalid dice count")
			}
			count = n
		}

		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 2 {
			return 0, "", fmt.Errorf("invalid dice sides")
		}
		if count > 100 || sides > 1000 {
			return 0, "", fmt.Errorf("too big, max 100 dice and 1000 sides")
		}

		var sum int
		rolls := make([]string, 0, count)
		for range count {
			r := intn(sides) + 1
			sum += r
			rolls = append(rolls, strconv.Itoa(r))
		}
		return sum, fmt.Sprintf("`%s` [%s]", token, strings.Join(rolls, ", ")), nil
	}

	num, err := strconv.Atoi(token)
	if err != nil {
		return 0, "", fmt.Errorf("not a number or dice")
	}
	return num, fmt.Sprintf("`%d`", num), nil
}
