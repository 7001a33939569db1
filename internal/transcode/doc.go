// Package transcode converts downloaded media into audio files with ffmpeg.
//
//	ff := transcode.NewFFmpeg("", "192k", logger)
//	if err := ff.Available(); err != nil {
//	    return err
//	}
//	artifact, err := ff.Convert(ctx, raw, "/music/.Song.partial.mp3", "mp3")
//
// Output formats: mp3, m4a, aac, opus, ogg, flac, wav.
package transcode
