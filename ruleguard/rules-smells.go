package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards returning the same value are mergeable with ||:
	//   if a { return err }
	//   if b { return err }
	// => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	// Same shape with continue, inside loops.
	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Nested loops aren't always wrong, but they mark extraction candidates.
	// The SSE frame loop and the history scans should stay flat.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)

	// fmt.Errorf without verbs allocates a formatter for nothing.
	m.Match(`fmt.Errorf($msg)`).
		Where(m["msg"].Type.Is(`string`) && m["msg"].Const).
		Report(`fmt.Errorf with a constant message; use errors.New`).
		Suggest(`errors.New($msg)`)

	// Sprintf-then-Write shows up in hand-rolled HTTP handlers; Fprintf
	// writes straight to the ResponseWriter.
	m.Match(`$w.Write([]byte(fmt.Sprintf($fmt, $*args)))`).
		Report(`formatting into a buffer just to write it; use fmt.Fprintf($w, ...)`).
		Suggest(`fmt.Fprintf($w, $fmt, $args)`)
}
