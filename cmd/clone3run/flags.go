package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// flagList collects a repeated flag
type flagList []string

var _ pflag.Value = (*flagList)(nil)

func (f *flagList) String() string {
	return fmt.Sprint([]string(*f))
}

func (f *flagList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func (f *flagList) Type() string {
	return "name"
}
