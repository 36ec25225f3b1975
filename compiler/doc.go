/*

Process of compilation

IR Text ->
	front ->
Class of Functions (prog) with Basic Blocks (cfg) ->
	live ->
Live Sets ->
	color ->
Interference Graphs ->
	regalloc + back ->
MIPS Assembly Text

Debug dumps: format.CFG (graphviz), format.Liveness.

*/
package compiler
