package scaffolding

// ProjectFiles is the seed project written by "ginger init".
func ProjectFiles() []FileTemplate {
	return []FileTemplate{
		{Path: ".gingerrc", Content: gingerrcTemplate},
		{Path: ".bowerrc", Content: `{
  "directory": "[[.Options.Paths.Vendor]]"
}
`},
		{Path: ".gitignore", Content: `node_modules/
[[.Options.Paths.Vendor]]/
[[.Options.Paths.Tmp]]/
[[.Options.Paths.Dist]]/*
!/[[.Options.Paths.Dist]]/.gitkeep
coverage/
`},
		{Path: "bower.json", Content: bowerTemplate},
		{Path: "package.json", Content: packageTemplate},
		{Path: "karma.conf.js", Content: karmaTemplate},
		{Path: "[[.Options.Paths.Dist]]/.gitkeep"},
		{Path: "[[.Options.Paths.Src]]/index.html", Content: indexTemplate},
		{Path: "[[.Options.Paths.Src]]/app/app.js", Content: `(function() {

  'use strict';

  angular.module('[[.Module]]', ['ui.router']);

})();
`},
		{Path: "[[.Options.Paths.Src]]/app/config/constants.js", Content: `(function(window) {

  'use strict';

  angular
    .module('[[.Module]]')
    .constant('$appInfo', window.appInfo);

})(this);
`},
		{Path: "[[.Options.Paths.Src]]/app/config/routes.js", Content: `(function() {

  'use strict';

  angular
    .module('[[.Module]]')
    .config(routesConfig);

  function routesConfig($urlRouterProvider, $locationProvider) {
    $locationProvider.html5Mode(true).hashPrefix('!');
    $urlRouterProvider.otherwise('/');
  }

})();
`},
		{Path: "[[.Options.Paths.Src]]/app/config/run.js", Content: `(function() {

  'use strict';

  angular
    .module('[[.Module]]')
    .run(runBlock);

  function runBlock($log, $appInfo) {
    $log.debug($appInfo.name + ' ' + $appInfo.version);
  }

})();
`},
		{Path: "[[.Options.Paths.Src]]/app/index.scss", Content: `// bower:scss
// endbower

body {
  margin: 0;
  font-family: sans-serif;
}

// injector
// endinjector
`},
		{Path: "[[.Options.Paths.Src]]/assets/images/.gitkeep"},
		{Path: "[[.Options.Paths.Src]]/assets/fonts/.gitkeep"},
	}
}

// PodFiles is one application pod: a routed view with its controller,
// stylesheet and spec, under src/app/pods/<name>/.
func PodFiles() []FileTemplate {
	const dir = "[[.Options.Paths.Src]]/app/pods/[[.Pod]]/[[.Pod]]"
	return []FileTemplate{
		{Path: dir + ".route.js", Content: `(function() {

  'use strict';

  angular
    .module('[[.Module]]')
    .config(function($stateProvider) {
      $stateProvider.state('[[camel .Pod]]', {
        url: '/[[if ne .Pod "home"]][[.Pod]][[end]]',
        templateUrl: 'pods/[[.Pod]]/[[.Pod]].html',
        controller: '[[pascal .Pod]]Controller',
        controllerAs: '[[camel .Pod]]'
      });
    });

})();
`},
		{Path: dir + ".controller.js", Content: `(function() {

  'use strict';

  angular
    .module('[[.Module]]')
    .controller('[[pascal .Pod]]Controller', [[pascal .Pod]]Controller);

  function [[pascal .Pod]]Controller($appInfo) {
    var vm = this;
    vm.title = $appInfo.name;
  }

})();
`},
		{Path: dir + ".controller.spec.js", Content: `(function() {

  'use strict';

  describe('[[pascal .Pod]]Controller', function() {

    beforeEach(module('[[.Module]]'));

    var $controller;

    beforeEach(inject(function(_$controller_) {
      $controller = _$controller_;
    }));

    it('exposes the application name', function() {
      var vm = $controller('[[pascal .Pod]]Controller', { $appInfo: { name: '[[.Name]]' } });
      expect(vm.title).toBe('[[.Name]]');
    });

  });

})();
`},
		{Path: dir + ".html", Content: `<section class="[[.Pod]]">
  <h1>{{ [[camel .Pod]].title }}</h1>
</section>
`},
		{Path: dir + ".scss", Content: `.[[.Pod]] {
  padding: 1rem;
}
`},
	}
}

const gingerrcTemplate = `{
  "paths": {
    "src": "[[.Options.Paths.Src]]",
    "tmp": "[[.Options.Paths.Tmp]]",
    "dist": "[[.Options.Paths.Dist]]"
  },
  "ports": {
    "app": [[.Options.Ports.App]],
    "bs": [[.Options.Ports.BS]],
    "karma": [[.Options.Ports.Karma]]
  },
  "content-security-policy": {
    "development": {
      "default-src": "'self'",
      "script-src": "'self' 'unsafe-eval'",
      "connect-src": "'self' ws://localhost:[[.Options.Ports.BS]] https://api.github.com",
      "img-src": "'self' https://avatars.githubusercontent.com"
    },
    "production": {
      "default-src": "'self'",
      "connect-src": "'self' https://api.github.com",
      "img-src": "'self' https://avatars.githubusercontent.com"
    }
  }
}
`

const bowerTemplate = `{
  "name": "[[.Name]]",
  "version": "[[.Version]]",
  "private": true,
  "dependencies": {
    "angular": "~1.5.0",
    "angular-ui-router": "~0.2.18"
  },
  "devDependencies": {
    "angular-mocks": "~1.5.0"
  }
}
`

const packageTemplate = `{
  "name": "[[.Name]]",
  "version": "[[.Version]]",
  "private": true,
  "scripts": {
    "start": "ginger serve",
    "build": "ginger build",
    "test": "ginger test"
  },
  "devDependencies": {
    "bower": "^1.7.7",
    "karma": "^0.13.22",
    "karma-coverage": "^0.5.5",
    "karma-jasmine": "^0.3.8",
    "karma-phantomjs-launcher": "^1.0.0",
    "jasmine-core": "^2.4.1",
    "phantomjs-prebuilt": "^2.1.7",
    "sass": "^1.32.0"
  }
}
`

// karmaTemplate loads the file list ginger writes before every run.
const karmaTemplate = `/* jshint node:true */

'use strict';

var fs = require('fs'),
    path = require('path');

module.exports = function(config) {
  var manifest = JSON.parse(fs.readFileSync(path.join('[[.Options.Paths.Tmp]]', 'karma-files.json')));
  var preprocessors = {};

  manifest.preprocess.forEach(function(file) {
    preprocessors[file] = ['coverage'];
  });

  config.set({
    frameworks: ['jasmine'],
    files: manifest.files,
    preprocessors: preprocessors,
    coverageReporter: {
      type: 'html',
      dir: manifest.reportDir
    },
    reporters: manifest.reporters,
    port: manifest.port,
    colors: true,
    logLevel: config.LOG_INFO,
    browsers: ['PhantomJS']
  });
};
`

const indexTemplate = `<!doctype html>
<html ng-app="[[.Module]]">
  <head>
    <meta charset="utf-8">
    <base href="/">
    <title>[[title .Name]]</title>
    <meta name="viewport" content="width=device-width">
    <!-- inject:csp -->
    <!-- endinject -->

    <!-- build:css styles/vendor.css -->
    <!-- bower:css -->
    <!-- endbower -->
    <!-- endbuild -->

    <!-- build:css styles/app.css -->
    <!-- inject:css -->
    <!-- endinject -->
    <!-- endbuild -->
  </head>
  <body>
    <div ui-view></div>

    <!-- build:js scripts/vendor.js -->
    <!-- bower:js -->
    <!-- endbower -->
    <!-- endbuild -->

    <!-- build:js scripts/app.js -->
    <!-- inject:appinfo -->
    <!-- endinject -->
    <!-- inject:js -->
    <!-- endinject -->
    <!-- inject:partials -->
    <!-- endinject -->
    <!-- endbuild -->
  </body>
</html>
`
