// Package psparser analyzes PowerShell scripts for anti-obfuscation
// purposes: it parses the source, safely evaluates every pure
// sub-expression, and reports a deobfuscated rendering, the captured
// output stream, a token inventory and the evaluation errors.
//
// Unsafe commands (anything outside the small safe-cmdlet table) are never
// executed. They re-emit verbatim with their safely evaluated arguments
// substituted in, so `Get-Process | Where-Object WorkingSet -GT (20MB)`
// deobfuscates to `Get-Process | Where-Object WorkingSet -GT 20971520`
// while producing no output.
//
// A session keeps variable scopes, functions and the environment snapshot
// across ParseInput calls:
//
//	s := psparser.NewSession()
//	res, err := s.ParseInput(`$a = 1 + 2; Write-Output $a`)
//	if err != nil {
//		// syntax error: the whole input was rejected
//	}
//	fmt.Println(res.Output())       // 3
//	fmt.Println(res.Deobfuscated()) // $a = 3 ...
//
// Sessions are not safe for concurrent use; run one session per
// goroutine.
package psparser
