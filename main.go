/*
 * Pandos - Main process.
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"fmt"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	command "github.com/minhdang26403/pandos/command/command"
	reader "github.com/minhdang26403/pandos/command/reader"
	config "github.com/minhdang26403/pandos/config/configparser"
	"github.com/minhdang26403/pandos/kernel/nucleus"
	logger "github.com/minhdang26403/pandos/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "pandos.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optMonitor := getopt.BoolLong("monitor", 'm', "Interactive monitor")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(log)

	log.Info("Pandos started")

	_, err := os.Stat(*optConfig)
	if os.IsNotExist(err) {
		log.Error("Configuration file " + *optConfig + " can't be found")
		os.Exit(1)
	}

	cfg, err := config.LoadConfigFile(*optConfig)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	if cfg.LogFile != "" && file == nil {
		file, err = os.Create(cfg.LogFile)
		if err == nil {
			log = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, optDebug))
			slog.SetDefault(log)
		}
	}

	sess, err := command.NewSession(cfg)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	if *optMonitor {
		reader.ConsoleReader(sess)
		log.Info("Monitor closed")
		return
	}

	status, err := sess.Run()
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	switch status {
	case nucleus.HaltOK:
		fmt.Println("System halted.")
	case nucleus.HaltDeadlock:
		fmt.Println("System halted: deadlock.")
		os.Exit(2)
	}
}
