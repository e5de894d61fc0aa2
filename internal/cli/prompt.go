package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal проверяет, что файл является терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// readLine печатает вопрос и читает одну строку ответа.
// EOF без ввода дает пустую строку.
func readLine(w io.Writer, r *bufio.Reader, question string) (string, error) {
	fmt.Fprint(w, question)

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}

	return strings.TrimSpace(line), nil
}

// Confirm задает вопрос [y/N]; пустой ввод и все, кроме y/yes, означают отказ
func Confirm(w io.Writer, r *bufio.Reader, question string) (bool, error) {
	answer, err := readLine(w, r, question+" [y/N] ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
