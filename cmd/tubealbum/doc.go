// Command tubealbum downloads a YouTube album playlist as tagged audio
// files.
//
//	tubealbum https://music.youtube.com/playlist?list=OLAK5uy_...
//	tubealbum download -j 8 -f opus --playlist <url>
//	tubealbum history
//	tubealbum config init
//
// The exit status is 1 when the run could not start or every track failed,
// and 130 when interrupted.
package main
