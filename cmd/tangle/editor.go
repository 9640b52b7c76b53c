package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// editor is a minimal raw-mode terminal editor used by the "new" command.
type editor struct {
	content    [][]rune
	cursorX    int
	cursorY    int
	screenRows int
	screenCols int
}

func newEditor() *editor {
	rows, cols, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		rows = 24
		cols = 80
	}
	return &editor{
		content:    [][]rune{{}},
		screenRows: rows - 2, // leave room for the status line
		screenCols: cols,
	}
}

// Run starts the editor and returns the typed content. Quitting without
// saving returns an empty string.
func (e *editor) Run() (string, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	for {
		e.refreshScreen()

		buf := make([]byte, 1)
		os.Stdin.Read(buf)

		switch buf[0] {
		case ctrl('q'):
			e.clearScreen()
			return "", nil
		case ctrl('s'):
			e.clearScreen()
			return e.text(), nil
		case 13: // Enter
			e.insertNewline()
		case 127: // Backspace
			e.handleBackspace()
		default:
			if !isCntrl(buf[0]) {
				e.insertChar(rune(buf[0]))
			}
		}
	}
}

func (e *editor) clearScreen() {
	fmt.Print("\x1b[2J")
	fmt.Print("\x1b[H")
	fmt.Print("\n")
}

func (e *editor) refreshScreen() {
	fmt.Print("\x1b[2J")
	fmt.Print("\x1b[H")

	for i, line := range e.content {
		if i >= e.screenRows {
			break
		}
		fmt.Print(string(line))
		fmt.Print("\r\n")
	}

	fmt.Print("\x1b[7m")
	status := fmt.Sprintf("Ctrl-S = Save | Ctrl-Q = Quit | Lines: %d", len(e.content))
	if len(status) > e.screenCols {
		status = status[:e.screenCols]
	}
	fmt.Print(status)
	fmt.Print("\x1b[m")

	fmt.Printf("\x1b[%d;%dH", e.cursorY+1, e.cursorX+1)
}

func (e *editor) insertChar(ch rune) {
	if e.cursorY >= len(e.content) {
		e.content = append(e.content, []rune{})
	}
	line := e.content[e.cursorY]
	if e.cursorX >= len(line) {
		line = append(line, ch)
	} else {
		line = append(line[:e.cursorX+1], line[e.cursorX:]...)
		line[e.cursorX] = ch
	}
	e.content[e.cursorY] = line
	e.cursorX++
}

func (e *editor) insertNewline() {
	if e.cursorY >= len(e.content) {
		e.content = append(e.content, []rune{})
	}
	line := e.content[e.cursorY]
	newLine := make([]rune, len(line[e.cursorX:]))
	copy(newLine, line[e.cursorX:])
	e.content[e.cursorY] = line[:e.cursorX]
	e.content = append(e.content[:e.cursorY+1], append([][]rune{newLine}, e.content[e.cursorY+1:]...)...)
	e.cursorY++
	e.cursorX = 0
}

func (e *editor) handleBackspace() {
	if e.cursorX > 0 {
		line := e.content[e.cursorY]
		e.content[e.cursorY] = append(line[:e.cursorX-1], line[e.cursorX:]...)
		e.cursorX--
	} else if e.cursorY > 0 {
		prevLine := e.content[e.cursorY-1]
		e.cursorX = len(prevLine)
		e.content[e.cursorY-1] = append(prevLine, e.content[e.cursorY]...)
		e.content = append(e.content[:e.cursorY], e.content[e.cursorY+1:]...)
		e.cursorY--
	}
}

func (e *editor) text() string {
	var content string
	for i, line := range e.content {
		if i > 0 {
			content += "\n"
		}
		content += string(line)
	}
	return content
}

func ctrl(b byte) byte {
	return b & 0x1f
}

func isCntrl(b byte) bool {
	return b < 32 || b == 127
}
