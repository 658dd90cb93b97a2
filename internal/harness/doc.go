// Package harness runs multi-actor browser scenarios against the table
// application.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: full_game
//	description: "GM and one player exchange fate points"
//	actors: [gm, player_one]
//	steps:
//	  - actor: gm
//	    do: visit
//	  - actor: gm
//	    do: click
//	    target: home.create_session
//	  - actor: gm
//	    do: fill
//	    target: create_session.title
//	    value: Test Session
//	  - actor: gm
//	    do: capture_session_id
//	  - actor: player_one
//	    do: fill
//	    target: join_session.session_id
//	    value: ${session_id}
//	  - actor: gm
//	    expect: text
//	    target: gamemaster.player[0].fate_points
//	    value: "1"
//	    wait: extended
//
// Every step names exactly one of do or expect. Targets come from a fixed
// vocabulary (see Targets) so a scenario never spells out a selector.
//
// # Waiting
//
// An expect step waits up to its own timeout: "default" for state the acting
// session changed itself, "extended" for state propagated from another
// session, or an explicit Go duration. Do steps never wait beyond the
// driver's action timeout.
//
// # Cleanup
//
// Every actor that was opened is screenshotted and closed when Run returns,
// whether the scenario passed, failed or was cancelled. Artifacts land in
// <results-dir>/<scenario>/<actor>.png.
//
// # Golden Traces
//
// Result.Trace records what the scenario did, with unexpanded values and no
// timings, so two runs of a passing scenario produce identical traces.
// AssertGolden compares a trace against testdata/golden/<name>.golden.
package harness
