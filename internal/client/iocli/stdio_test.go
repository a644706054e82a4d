package iocli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	var io IO = NewStdio()
	assert.NotNil(t, io)
}

func newPipedStdio(input string) (*Stdio, *bytes.Buffer) {
	var out bytes.Buffer
	return &Stdio{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: &out,
		fd:  -1,
	}, &out
}

func TestPrintlnAndPrintf(t *testing.T) {
	s, out := newPipedStdio("")

	s.Println("hello", "world")
	s.Printf("test %d %s", 1, "abc")

	assert.Equal(t, "hello world\ntest 1 abc", out.String())
}

// Тест ReadInput: читаем из буфера вместо os.Stdin
func TestReadInput(t *testing.T) {
	s, out := newPipedStdio("  user input \n")

	result, err := s.ReadInput("Prompt: ")
	require.NoError(t, err)
	assert.Equal(t, "user input", result)
	assert.Equal(t, "Prompt: ", out.String())
}

func TestReadPassword_PipedInput(t *testing.T) {
	s, _ := newPipedStdio("root@example.com\nsecret")

	email, err := s.ReadInput("Email: ")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", email)

	pw, err := s.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw, "last line without newline is accepted")

	_, err = s.ReadInput("More: ")
	assert.Error(t, err)
}
