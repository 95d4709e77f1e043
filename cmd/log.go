package cmd

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// prefixFormatter renders entries as "[tgimg] message key=value ...".
type prefixFormatter struct{}

func (prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("[tgimg] ")
	if e.Level <= logrus.WarnLevel {
		b.WriteString(e.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
