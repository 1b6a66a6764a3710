package main

import (
	"clanactivity/cmd/clan-activity/commands"
	"clanactivity/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
